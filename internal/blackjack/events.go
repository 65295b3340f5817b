package blackjack

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// EventType represents an engine event type with type safety
type EventType string

// EventType constants for round events
const (
	EventTypeStateChanged EventType = "state_changed"
	EventTypeCardShown    EventType = "card_shown"
	EventTypeHandCleared  EventType = "hand_cleared"
	EventTypeRoundSettled EventType = "round_settled"
	EventTypeBetChanged   EventType = "bet_changed"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// Event is anything the engine publishes while a round progresses
type Event interface {
	EventType() EventType
	Timestamp() time.Time
}

// StateChangedEvent is published on every state transition
type StateChangedEvent struct {
	From      State
	To        State
	Result    string
	timestamp time.Time
}

func (e StateChangedEvent) EventType() EventType { return EventTypeStateChanged }
func (e StateChangedEvent) Timestamp() time.Time { return e.timestamp }

// CardShownEvent is published when a card lands in a slot or is turned over.
// While the card is face down Image is the back image and Label is empty.
type CardShownEvent struct {
	Role      Role
	Index     int
	SlotID    string
	Image     string
	FaceUp    bool
	Label     string
	timestamp time.Time
}

func (e CardShownEvent) EventType() EventType { return EventTypeCardShown }
func (e CardShownEvent) Timestamp() time.Time { return e.timestamp }

// HandClearedEvent lists the slots to remove from display
type HandClearedEvent struct {
	Role      Role
	SlotIDs   []string
	timestamp time.Time
}

func (e HandClearedEvent) EventType() EventType { return EventTypeHandCleared }
func (e HandClearedEvent) Timestamp() time.Time { return e.timestamp }

// RoundSettledEvent is published once per round with the money movement
type RoundSettledEvent struct {
	Outcome   Outcome
	Result    string
	Bet       int
	Payout    int
	Bank      int
	timestamp time.Time
}

func (e RoundSettledEvent) EventType() EventType { return EventTypeRoundSettled }
func (e RoundSettledEvent) Timestamp() time.Time { return e.timestamp }

// BetChangedEvent is published when the pending wager or bank moves
type BetChangedEvent struct {
	Bet       int
	Bank      int
	timestamp time.Time
}

func (e BetChangedEvent) EventType() EventType { return EventTypeBetChanged }
func (e BetChangedEvent) Timestamp() time.Time { return e.timestamp }

// EventSubscriber can subscribe to engine events
type EventSubscriber interface {
	OnEvent(event Event)
}

// SubscriberFunc adapts a function to EventSubscriber
type SubscriberFunc func(Event)

func (f SubscriberFunc) OnEvent(event Event) { f(event) }

// EventBus manages event publishing and subscription
type EventBus interface {
	Subscribe(subscriber EventSubscriber)
	Unsubscribe(subscriber EventSubscriber)
	Publish(event Event)
}

// SimpleEventBus delivers events synchronously in subscription order
type SimpleEventBus struct {
	mu          sync.RWMutex
	subscribers []EventSubscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *SimpleEventBus {
	return &SimpleEventBus{}
}

// Subscribe adds a subscriber to receive events
func (bus *SimpleEventBus) Subscribe(subscriber EventSubscriber) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subscribers = append(bus.subscribers, subscriber)
}

// Unsubscribe removes a subscriber. SubscriberFunc values cannot be
// compared and are never removed.
func (bus *SimpleEventBus) Unsubscribe(subscriber EventSubscriber) {
	if _, ok := subscriber.(SubscriberFunc); ok {
		return
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i, sub := range bus.subscribers {
		if _, ok := sub.(SubscriberFunc); ok {
			continue
		}
		if sub == subscriber {
			bus.subscribers = append(bus.subscribers[:i], bus.subscribers[i+1:]...)
			break
		}
	}
}

// Publish sends an event to all subscribers
func (bus *SimpleEventBus) Publish(event Event) {
	bus.mu.RLock()
	subs := make([]EventSubscriber, len(bus.subscribers))
	copy(subs, bus.subscribers)
	bus.mu.RUnlock()

	for _, subscriber := range subs {
		subscriber.OnEvent(event)
	}
}

// FormatEvent renders an event as a one-line log entry
func FormatEvent(event Event) string {
	switch e := event.(type) {
	case StateChangedEvent:
		if e.To == StateResult && e.Result != "" {
			return fmt.Sprintf("%s → %s: %s", e.From, e.To, e.Result)
		}
		return fmt.Sprintf("%s → %s", e.From, e.To)
	case CardShownEvent:
		if !e.FaceUp {
			return fmt.Sprintf("%s: face-down card", titleCase(string(e.Role)))
		}
		return fmt.Sprintf("%s: %s", titleCase(string(e.Role)), e.Label)
	case HandClearedEvent:
		return fmt.Sprintf("%s: cleared %d cards", titleCase(string(e.Role)), len(e.SlotIDs))
	case RoundSettledEvent:
		switch e.Outcome {
		case OutcomePlayerWin:
			return fmt.Sprintf("%s! You win $%d (bank $%d)", e.Result, e.Payout-e.Bet, e.Bank)
		case OutcomePush:
			return fmt.Sprintf("Push. $%d returned (bank $%d)", e.Payout, e.Bank)
		default:
			return fmt.Sprintf("%s. You lose $%d (bank $%d)", e.Result, e.Bet, e.Bank)
		}
	case BetChangedEvent:
		return fmt.Sprintf("Bet $%d (bank $%d)", e.Bet, e.Bank)
	default:
		return event.EventType().String()
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
