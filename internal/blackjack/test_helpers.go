package blackjack

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/store"
)

// ScriptedProvider deals a fixed sequence of cards, for tests. Cards are
// handed out in order across all draws.
type ScriptedProvider struct {
	mu       sync.Mutex
	cards    []deck.Card
	shoes    int
	draws    int
	failNext []error

	// Called is signalled, without blocking, at the start of every Draw
	Called chan struct{}
	// Block, when set, makes Draw wait for it or for ctx
	Block chan struct{}
}

// NewScriptedProvider deals cards in the order given, e.g.
// NewScriptedProvider("9S AH 7D KC")
func NewScriptedProvider(cards string) *ScriptedProvider {
	p := &ScriptedProvider{Called: make(chan struct{}, 16)}
	if cards != "" {
		p.cards = deck.MustParseCards(cards)
	}
	return p
}

// Push appends cards to the end of the script
func (p *ScriptedProvider) Push(cards string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cards = append(p.cards, deck.MustParseCards(cards)...)
}

// FailNext makes the next call return err without consuming cards
func (p *ScriptedProvider) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = append(p.failNext, err)
}

// Remaining reports how many scripted cards are left
func (p *ScriptedProvider) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cards)
}

// Shoes reports how many shoes were created
func (p *ScriptedProvider) Shoes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shoes
}

func (p *ScriptedProvider) NewShoe(ctx context.Context, decks int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.popFailure(); err != nil {
		return "", err
	}
	p.shoes++
	return fmt.Sprintf("shoe-%d", p.shoes), nil
}

func (p *ScriptedProvider) Draw(ctx context.Context, shoeID string, count int) ([]deck.Card, error) {
	select {
	case p.Called <- struct{}{}:
	default:
	}
	if p.Block != nil {
		select {
		case <-p.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.popFailure(); err != nil {
		return nil, err
	}
	p.draws++
	n := min(count, len(p.cards))
	out := make([]deck.Card, n)
	copy(out, p.cards[:n])
	p.cards = p.cards[n:]
	return out, nil
}

func (p *ScriptedProvider) popFailure() error {
	if len(p.failNext) == 0 {
		return nil
	}
	err := p.failNext[0]
	p.failNext = p.failNext[1:]
	return err
}

// EventRecorder keeps every event it is sent
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *EventRecorder) OnEvent(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of what has been recorded
func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters the recorded events
func (r *EventRecorder) OfType(t EventType) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.EventType() == t {
			out = append(out, ev)
		}
	}
	return out
}

// Reset forgets recorded events
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// TestEngine bundles an engine with its collaborators
type TestEngine struct {
	*Engine
	Provider *ScriptedProvider
	Store    *store.Memory
	Events   *EventRecorder
}

// NewTestEngine creates an engine over a scripted provider and an in-memory
// store, with events recorded and logging discarded
func NewTestEngine(cards string, opts ...Option) *TestEngine {
	te := &TestEngine{
		Provider: NewScriptedProvider(cards),
		Store:    store.NewMemory(),
		Events:   &EventRecorder{},
	}
	bus := NewEventBus()
	bus.Subscribe(te.Events)
	opts = append([]Option{WithEventBus(bus)}, opts...)
	te.Engine = NewEngine(te.Provider, te.Store, log.New(io.Discard), opts...)
	return te
}
