package deck

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrShoeNotFound  = errors.New("shoe not found")
	ErrShoeExhausted = errors.New("shoe exhausted")
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// NewRand returns a *rand.Rand seeded deterministically from seed.
// A zero seed uses the current time.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// Shoe is an ordered stack of cards built from one or more standard decks
type Shoe struct {
	cards []Card
}

// NewShoe creates an unshuffled shoe of numDecks standard 52-card decks
func NewShoe(numDecks int) *Shoe {
	shoe := &Shoe{cards: make([]Card, 0, 52*numDecks)}
	for i := 0; i < numDecks; i++ {
		for suit := Spades; suit <= Clubs; suit++ {
			for rank := Two; rank <= Ace; rank++ {
				shoe.cards = append(shoe.cards, NewCard(rank, suit))
			}
		}
	}
	return shoe
}

// NewStackedShoe creates a shoe that deals cards in exactly the given order
func NewStackedShoe(cards ...Card) *Shoe {
	return &Shoe{cards: append([]Card(nil), cards...)}
}

// Shuffle randomizes the order of cards in the shoe
func (s *Shoe) Shuffle(rng *rand.Rand) {
	for i := len(s.cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		s.cards[i], s.cards[j] = s.cards[j], s.cards[i]
	}
}

// DealN removes and returns the top n cards. Nothing is removed when fewer
// than n cards remain.
func (s *Shoe) DealN(n int) ([]Card, error) {
	if n > len(s.cards) {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrShoeExhausted, n, len(s.cards))
	}
	cards := make([]Card, n)
	copy(cards, s.cards[:n])
	s.cards = s.cards[n:]
	return cards, nil
}

// Remaining returns the number of cards left in the shoe
func (s *Shoe) Remaining() int {
	return len(s.cards)
}

// LocalProvider deals from in-process shoes. It is the offline counterpart of
// the remote deck service and is safe for concurrent use.
type LocalProvider struct {
	mu    sync.Mutex
	rng   *rand.Rand
	shoes map[string]*Shoe
}

// NewLocalProvider creates a provider whose shuffles derive from seed
func NewLocalProvider(seed int64) *LocalProvider {
	return &LocalProvider{
		rng:   NewRand(seed),
		shoes: make(map[string]*Shoe),
	}
}

// NewShoe creates and shuffles a shoe of the given number of decks
func (p *LocalProvider) NewShoe(ctx context.Context, decks int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if decks < 1 {
		return "", fmt.Errorf("deck count must be positive, got %d", decks)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate shoe id: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	shoe := NewShoe(decks)
	shoe.Shuffle(p.rng)
	p.shoes[id.String()] = shoe
	return id.String(), nil
}

// AddShoe registers a prepared shoe under id, replacing any existing one
func (p *LocalProvider) AddShoe(id string, shoe *Shoe) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shoes[id] = shoe
}

// Draw deals count face-up cards from the shoe
func (p *LocalProvider) Draw(ctx context.Context, shoeID string, count int) ([]Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	shoe, ok := p.shoes[shoeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrShoeNotFound, shoeID)
	}
	return shoe.DealN(count)
}

// Remaining reports the cards left in a shoe
func (p *LocalProvider) Remaining(_ context.Context, shoeID string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	shoe, ok := p.shoes[shoeID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrShoeNotFound, shoeID)
	}
	return shoe.Remaining(), nil
}
