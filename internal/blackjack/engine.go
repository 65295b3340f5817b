package blackjack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/store"
)

const (
	DefaultStartingBank = 500
	DefaultDeckCount    = 6
	DefaultDrawTimeout  = 10 * time.Second

	// dealerStandsOn is the total at which the dealer stops drawing, soft or hard
	dealerStandsOn = 17
)

// Provider supplies shuffled shoes and draws from them
type Provider interface {
	NewShoe(ctx context.Context, decks int) (string, error)
	Draw(ctx context.Context, shoeID string, count int) ([]deck.Card, error)
}

// Option configures an Engine
type Option func(*Engine)

// WithStartingBank sets the bankroll a fresh game starts with
func WithStartingBank(bank int) Option {
	return func(e *Engine) { e.startingBank = bank }
}

// WithDeckCount sets the number of decks per shoe
func WithDeckCount(decks int) Option {
	return func(e *Engine) { e.deckCount = decks }
}

// WithMinBet sets the smallest wager ConfirmBet accepts
func WithMinBet(min int) Option {
	return func(e *Engine) { e.minBet = min }
}

// WithEventBus publishes events on bus instead of a private one
func WithEventBus(bus EventBus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithClock replaces the real clock, used by tests to drive draw timeouts
func WithClock(clock quartz.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithDrawTimeout bounds each provider call. Zero disables the timeout.
func WithDrawTimeout(d time.Duration) Option {
	return func(e *Engine) { e.drawTimeout = d }
}

// Engine runs one player's rounds against the dealer
type Engine struct {
	provider Provider
	store    store.Store
	logger   *log.Logger
	bus      EventBus
	clock    quartz.Clock

	startingBank int
	deckCount    int
	minBet       int
	drawTimeout  time.Duration

	shoeID  string
	dealer  *Hand
	player  *Hand
	state   State
	result  string
	outcome Outcome
	bank    int
	bet     int
}

// NewEngine creates an engine in the Initial state. Call Resume or NewGame
// before anything else.
func NewEngine(provider Provider, st store.Store, logger *log.Logger, opts ...Option) *Engine {
	e := &Engine{
		provider:     provider,
		store:        st,
		logger:       logger.WithPrefix("engine"),
		bus:          NewEventBus(),
		clock:        quartz.NewReal(),
		startingBank: DefaultStartingBank,
		deckCount:    DefaultDeckCount,
		minBet:       1,
		drawTimeout:  DefaultDrawTimeout,
		dealer:       NewHand(Dealer),
		player:       NewHand(Player),
		state:        StateInitial,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.minBet < 1 {
		e.minBet = 1
	}
	return e
}

func (e *Engine) State() State       { return e.state }
func (e *Engine) Result() string     { return e.result }
func (e *Engine) Outcome() Outcome   { return e.outcome }
func (e *Engine) Bank() int          { return e.bank }
func (e *Engine) Bet() int           { return e.bet }
func (e *Engine) Dealer() *Hand      { return e.dealer }
func (e *Engine) Player() *Hand      { return e.player }
func (e *Engine) ShoeID() string     { return e.shoeID }
func (e *Engine) MinBet() int        { return e.minBet }
func (e *Engine) EventBus() EventBus { return e.bus }

// Table is a copy of everything a presentation layer draws
type Table struct {
	State       State
	Result      string
	Outcome     Outcome
	Bank        int
	Bet         int
	MinBet      int
	ShoeID      string
	Dealer      []deck.Card
	Player      []deck.Card
	DealerTotal int // face-up cards only
	PlayerTotal int
}

// Table snapshots the round for display
func (e *Engine) Table() Table {
	return Table{
		State:       e.state,
		Result:      e.result,
		Outcome:     e.outcome,
		Bank:        e.bank,
		Bet:         e.bet,
		MinBet:      e.minBet,
		ShoeID:      e.shoeID,
		Dealer:      e.dealer.Cards(),
		Player:      e.player.Cards(),
		DealerTotal: e.dealer.VisibleTotal(),
		PlayerTotal: e.player.Total(),
	}
}

// NewGame opens a fresh shoe when resetBankroll is set or none exists yet,
// clears the table and waits for a bet. A bank that has run dry is always
// refilled. Any bet riding on an unfinished round is forfeited.
func (e *Engine) NewGame(ctx context.Context, resetBankroll bool) error {
	if !resetBankroll && e.bank <= 0 {
		e.logger.Info("Bank is empty, starting over")
		resetBankroll = true
	}

	shoeID := e.shoeID
	if resetBankroll || shoeID == "" {
		var err error
		if shoeID, err = e.newShoe(ctx); err != nil {
			return err
		}
	}

	if e.state == StatePlaying && e.bet > 0 {
		e.logger.Warn("Abandoning round in progress", "bet", e.bet)
	}

	e.shoeID = shoeID
	e.clearTable()
	e.bet = 0
	if resetBankroll {
		e.bank = e.startingBank
	}
	e.publish(BetChangedEvent{Bet: e.bet, Bank: e.bank})
	e.setState(StateBetting)
	e.logger.Info("New game", "shoe", e.shoeID, "bank", e.bank)
	e.save(ctx)
	return nil
}

// Reshuffle swaps in a fresh shoe between rounds. The bank and the pending
// wager carry over.
func (e *Engine) Reshuffle(ctx context.Context) error {
	if err := e.require("reshuffle", StateBetting); err != nil {
		return err
	}
	shoeID, err := e.newShoe(ctx)
	if err != nil {
		return err
	}
	e.shoeID = shoeID
	e.logger.Info("Reshuffled", "shoe", e.shoeID, "bank", e.bank, "bet", e.bet)
	e.save(ctx)
	return nil
}

// AddToBet raises the pending wager by amount, capped at the bank, and
// returns the new wager
func (e *Engine) AddToBet(ctx context.Context, amount int) (int, error) {
	if err := e.require("bet", StateBetting); err != nil {
		return e.bet, err
	}
	if amount <= 0 {
		return e.bet, fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidBet, amount)
	}

	e.bet = min(e.bet+amount, e.bank)
	e.publish(BetChangedEvent{Bet: e.bet, Bank: e.bank})
	e.save(ctx)
	return e.bet, nil
}

// ClearBet drops the pending wager
func (e *Engine) ClearBet(ctx context.Context) error {
	if err := e.require("clear bet", StateBetting); err != nil {
		return err
	}
	e.bet = 0
	e.publish(BetChangedEvent{Bet: e.bet, Bank: e.bank})
	e.save(ctx)
	return nil
}

// ConfirmBet validates the pending wager and deals the round
func (e *Engine) ConfirmBet(ctx context.Context) error {
	if err := e.require("confirm bet", StateBetting); err != nil {
		return err
	}
	switch {
	case e.bet <= 0:
		return fmt.Errorf("%w: no bet placed", ErrInvalidBet)
	case e.bet < e.minBet:
		return fmt.Errorf("%w: bet $%d is below the $%d minimum", ErrInvalidBet, e.bet, e.minBet)
	case e.bet > e.bank:
		return fmt.Errorf("%w: bet $%d exceeds bank $%d", ErrInvalidBet, e.bet, e.bank)
	}
	return e.Play(ctx)
}

// Play deals a round for whatever is currently wagered, which may be nothing.
// Cards go dealer (face down), player, dealer, player. Nothing changes if
// the draw fails.
func (e *Engine) Play(ctx context.Context) error {
	if err := e.require("deal", StateBetting); err != nil {
		return err
	}
	if e.bet > e.bank {
		return fmt.Errorf("%w: bet $%d exceeds bank $%d", ErrInvalidBet, e.bet, e.bank)
	}

	cards, err := e.draw(ctx, 4)
	if err != nil {
		return err
	}

	e.clearTable()
	e.bank -= e.bet
	e.publish(BetChangedEvent{Bet: e.bet, Bank: e.bank})

	e.deal(e.dealer, cards[0], false)
	e.deal(e.player, cards[1], true)
	e.deal(e.dealer, cards[2], true)
	e.deal(e.player, cards[3], true)

	e.logger.Debug("Dealt", "player", e.player.Total(), "dealer_up", e.dealer.VisibleTotal(), "bet", e.bet)

	if !e.settleNaturals() {
		e.setState(StatePlaying)
	}
	e.save(ctx)
	return nil
}

// Hit deals the player one card. Busting ends the round.
func (e *Engine) Hit(ctx context.Context) error {
	if err := e.require("hit", StatePlaying); err != nil {
		return err
	}

	cards, err := e.draw(ctx, 1)
	if err != nil {
		return err
	}
	e.deal(e.player, cards[0], true)

	if e.player.IsBust() {
		e.finish(OutcomeDealerWin, ResultPlayerBust)
	}
	e.save(ctx)
	return nil
}

// Stand ends the player's turn. The hole card is revealed, the dealer draws
// one card at a time to 17 and the round settles. If a dealer draw fails the
// cards already dealt stay on the table and Stand can be called again.
func (e *Engine) Stand(ctx context.Context) error {
	if err := e.require("stand", StatePlaying); err != nil {
		return err
	}

	e.revealHole()

	for e.dealer.Total() < dealerStandsOn {
		cards, err := e.draw(ctx, 1)
		if err != nil {
			e.save(ctx)
			return err
		}
		e.deal(e.dealer, cards[0], true)
	}

	dealer, player := e.dealer.Total(), e.player.Total()
	switch {
	case e.dealer.IsBust():
		e.finish(OutcomePlayerWin, ResultDealerBust)
	case dealer > player:
		e.finish(OutcomeDealerWin, ResultDealerWon)
	case dealer == player:
		e.finish(OutcomePush, ResultPush)
	default:
		e.finish(OutcomePlayerWin, ResultPlayerWon)
	}
	e.save(ctx)
	return nil
}

// NextRound leaves the result screen for a new betting phase on the same
// shoe. A bank that can no longer cover the minimum bet starts a new game.
func (e *Engine) NextRound(ctx context.Context) error {
	if err := e.require("start next round", StateResult); err != nil {
		return err
	}
	if e.bank < e.minBet {
		return e.NewGame(ctx, true)
	}

	e.clearTable()
	e.bet = 0
	e.publish(BetChangedEvent{Bet: e.bet, Bank: e.bank})
	e.setState(StateBetting)
	e.save(ctx)
	return nil
}

// settleNaturals resolves blackjacks on the initial deal. The dealer is
// checked first; both holding one is a push.
func (e *Engine) settleNaturals() bool {
	switch {
	case e.dealer.HasBlackjack():
		e.revealHole()
		if e.player.HasBlackjack() {
			e.finish(OutcomePush, ResultPush)
		} else {
			e.finish(OutcomeDealerWin, ResultDealerBlackjack)
		}
		return true
	case e.player.HasBlackjack():
		e.revealHole()
		e.finish(OutcomePlayerWin, ResultPlayerBlackjack)
		return true
	}
	return false
}

// finish settles the bet, exactly once per round
func (e *Engine) finish(outcome Outcome, result string) {
	bet := e.bet
	payout := Payout(outcome, bet)
	e.bank += payout
	e.bet = 0
	e.outcome = outcome
	e.result = result

	e.logger.Info("Round settled",
		"result", result,
		"player", e.player.Total(),
		"dealer", e.dealer.Total(),
		"bet", bet,
		"payout", payout,
		"bank", e.bank)

	e.publish(RoundSettledEvent{Outcome: outcome, Result: result, Bet: bet, Payout: payout, Bank: e.bank})
	e.setState(StateResult)
}

func (e *Engine) deal(h *Hand, card deck.Card, faceUp bool) {
	i := h.Deal(card, faceUp)
	e.publishCard(h, i)
}

func (e *Engine) revealHole() {
	if e.dealer.Reveal(0) {
		e.publishCard(e.dealer, 0)
	}
}

func (e *Engine) clearTable() {
	for _, h := range []*Hand{e.dealer, e.player} {
		if slots := h.Reset(); len(slots) > 0 {
			e.publish(HandClearedEvent{Role: h.Role(), SlotIDs: slots})
		}
	}
	e.result = ""
	e.outcome = OutcomeNone
}

func (e *Engine) publishCard(h *Hand, i int) {
	c := h.Card(i)
	ev := CardShownEvent{
		Role:   h.Role(),
		Index:  i,
		SlotID: h.SlotID(i),
		Image:  c.DisplayImage(),
		FaceUp: c.FaceUp,
	}
	if c.FaceUp {
		ev.Label = c.String()
	}
	e.publish(ev)
}

func (e *Engine) setState(to State) {
	from := e.state
	e.state = to
	e.publish(StateChangedEvent{From: from, To: to, Result: e.result})
}

func (e *Engine) publish(event Event) {
	now := e.clock.Now()
	switch ev := event.(type) {
	case StateChangedEvent:
		ev.timestamp = now
		event = ev
	case CardShownEvent:
		ev.timestamp = now
		event = ev
	case HandClearedEvent:
		ev.timestamp = now
		event = ev
	case RoundSettledEvent:
		ev.timestamp = now
		event = ev
	case BetChangedEvent:
		ev.timestamp = now
		event = ev
	}
	e.bus.Publish(event)
}

func (e *Engine) require(op string, allowed ...State) error {
	for _, s := range allowed {
		if e.state == s {
			return nil
		}
	}
	return &TransitionError{Op: op, State: e.state}
}

func (e *Engine) newShoe(ctx context.Context) (string, error) {
	var id string
	err := e.callProvider(ctx, "new shoe", func(ctx context.Context) error {
		var err error
		id, err = e.provider.NewShoe(ctx, e.deckCount)
		return err
	})
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", &ProviderError{Op: "new shoe", Err: errors.New("empty shoe id")}
	}
	return id, nil
}

func (e *Engine) draw(ctx context.Context, n int) ([]deck.Card, error) {
	var cards []deck.Card
	err := e.callProvider(ctx, "draw", func(ctx context.Context) error {
		var err error
		cards, err = e.provider.Draw(ctx, e.shoeID, n)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(cards) < n {
		return nil, &ProviderError{Op: "draw", Err: fmt.Errorf("%w: wanted %d, got %d", ErrShortDraw, n, len(cards))}
	}
	return cards[:n], nil
}

// callProvider runs fn under the draw timeout. The timer runs on the
// engine clock so tests can fire it with a mock.
func (e *Engine) callProvider(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if e.drawTimeout > 0 {
		timer := e.clock.AfterFunc(e.drawTimeout, func() {
			cancel(ErrProviderTimeout)
		}, "engine", op)
		defer timer.Stop()
	}

	err := fn(ctx)
	if err == nil {
		return nil
	}
	if cause := context.Cause(ctx); errors.Is(cause, ErrProviderTimeout) {
		err = fmt.Errorf("%w after %s", ErrProviderTimeout, e.drawTimeout)
	}
	e.logger.Warn("Card provider call failed", "op", op, "error", err)
	return &ProviderError{Op: op, Err: err}
}
