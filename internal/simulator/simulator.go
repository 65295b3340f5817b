// Package simulator plays many automated blackjack sessions in parallel and
// aggregates the outcomes, as a soak test of the engine and a rough measure
// of the house edge for a simple player policy.
package simulator

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/store"
	"golang.org/x/sync/errgroup"
)

// Player hits below this total and stands otherwise
const DefaultStandOn = 17

// cards left in a shoe below which a session starts a fresh shoe
const reshuffleAt = 30

// Config holds configuration for running simulations
type Config struct {
	Sessions int
	Rounds   int
	Workers  int
	Bet      int
	StandOn  int
	Seed     int64
	Decks    int
	Logger   *log.Logger
	// Store receives every session's saves under session/<n>/. Nil uses an
	// in-memory store.
	Store store.Store
}

// Simulator runs blackjack sessions
type Simulator struct {
	config Config
}

// New creates a new simulator with the given configuration
func New(config Config) *Simulator {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.Bet < 1 {
		config.Bet = 10
	}
	if config.StandOn == 0 {
		config.StandOn = DefaultStandOn
	}
	if config.Decks < 1 {
		config.Decks = blackjack.DefaultDeckCount
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.Store == nil {
		config.Store = store.NewMemory()
	}
	return &Simulator{config: config}
}

// Run plays every session and returns the combined statistics. The first
// session error cancels the rest.
func (s *Simulator) Run(ctx context.Context) (*Stats, error) {
	results := make([]Stats, s.config.Sessions)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for i := range s.config.Sessions {
		g.Go(func() error {
			st, err := s.playSession(ctx, i)
			if err != nil {
				return fmt.Errorf("session %d: %w", i, err)
			}
			results[i] = *st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := &Stats{}
	for i := range results {
		total.Merge(&results[i])
	}
	return total, nil
}

// playSession plays Rounds rounds on its own engine. Each session shuffles
// from its own seed so results do not depend on worker scheduling.
func (s *Simulator) playSession(ctx context.Context, n int) (*Stats, error) {
	provider := deck.NewLocalProvider(s.config.Seed + int64(n))
	st := store.Prefixed(s.config.Store, fmt.Sprintf("session/%d/", n))
	engine := blackjack.NewEngine(provider, st, s.config.Logger,
		blackjack.WithDeckCount(s.config.Decks),
		blackjack.WithDrawTimeout(0),
	)

	stats := &Stats{Sessions: 1}
	engine.EventBus().Subscribe(blackjack.SubscriberFunc(stats.record))

	if err := engine.NewGame(ctx, true); err != nil {
		return nil, err
	}
	stats.Shoes++

	for range s.config.Rounds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		left, err := provider.Remaining(ctx, engine.ShoeID())
		if err != nil {
			return nil, err
		}
		if left < reshuffleAt {
			if err := engine.Reshuffle(ctx); err != nil {
				return nil, err
			}
			stats.Shoes++
		}

		if err := s.playRound(ctx, engine); err != nil {
			return nil, err
		}

		bank := engine.Bank()
		if err := engine.NextRound(ctx); err != nil {
			return nil, err
		}
		if bank < engine.MinBet() {
			// NextRound started over with a new shoe and bank
			stats.Bankrupt++
			stats.Shoes++
		}
	}
	return stats, nil
}

func (s *Simulator) playRound(ctx context.Context, engine *blackjack.Engine) error {
	if _, err := engine.AddToBet(ctx, s.config.Bet); err != nil {
		return err
	}
	if err := engine.ConfirmBet(ctx); err != nil {
		return err
	}

	for engine.State() == blackjack.StatePlaying {
		var err error
		if engine.Player().Total() < s.config.StandOn {
			err = engine.Hit(ctx)
		} else {
			err = engine.Stand(ctx)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
