package blackjack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingSubscriber struct{ n int }

func (c *countingSubscriber) OnEvent(Event) { c.n++ }

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	a, b := &countingSubscriber{}, &countingSubscriber{}
	var seen []EventType
	bus.Subscribe(a)
	bus.Subscribe(b)
	bus.Subscribe(SubscriberFunc(func(e Event) { seen = append(seen, e.EventType()) }))

	bus.Publish(BetChangedEvent{Bet: 5})
	bus.Unsubscribe(a)
	bus.Publish(HandClearedEvent{Role: Dealer})

	assert.Equal(t, 1, a.n)
	assert.Equal(t, 2, b.n)
	assert.Equal(t, []EventType{EventTypeBetChanged, EventTypeHandCleared}, seen)
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		expected string
	}{
		{"state", StateChangedEvent{From: StateBetting, To: StatePlaying}, "betting → playing"},
		{"state with result", StateChangedEvent{From: StatePlaying, To: StateResult, Result: ResultPlayerBust}, "playing → result: Player Bust"},
		{"face down card", CardShownEvent{Role: Dealer, FaceUp: false, Label: "A♠"}, "Dealer: face-down card"},
		{"face up card", CardShownEvent{Role: Player, FaceUp: true, Label: "10♥"}, "Player: 10♥"},
		{"cleared", HandClearedEvent{Role: Player, SlotIDs: []string{"player0", "player1"}}, "Player: cleared 2 cards"},
		{"win", RoundSettledEvent{Outcome: OutcomePlayerWin, Result: ResultPlayerBlackjack, Bet: 10, Payout: 20, Bank: 510}, "Player Blackjack! You win $10 (bank $510)"},
		{"push", RoundSettledEvent{Outcome: OutcomePush, Result: ResultPush, Bet: 10, Payout: 10, Bank: 500}, "Push. $10 returned (bank $500)"},
		{"loss", RoundSettledEvent{Outcome: OutcomeDealerWin, Result: ResultDealerWon, Bet: 10, Bank: 490}, "Dealer Won. You lose $10 (bank $490)"},
		{"bet", BetChangedEvent{Bet: 25, Bank: 500}, "Bet $25 (bank $500)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatEvent(tt.event))
		})
	}
}

func TestPayout(t *testing.T) {
	assert.Equal(t, 20, Payout(OutcomePlayerWin, 10))
	assert.Equal(t, 10, Payout(OutcomePush, 10))
	assert.Equal(t, 0, Payout(OutcomeDealerWin, 10))
	assert.Equal(t, 0, Payout(OutcomeNone, 10))
}

func TestStateStrings(t *testing.T) {
	for _, s := range []State{StateInitial, StateBetting, StatePlaying, StateResult} {
		parsed, err := ParseState(s.String())
		assert.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseState("dealer")
	assert.Error(t, err)
	assert.Equal(t, "State(9)", State(9).String())
	assert.Equal(t, OutcomePush, OutcomeOf(ResultPush))
	assert.Equal(t, OutcomeNone, OutcomeOf("unknown"))
}
