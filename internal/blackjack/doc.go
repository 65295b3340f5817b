// Package blackjack implements a single-player blackjack round against a
// dealer: dealing order, blackjack detection, the player's hit/stand turn,
// dealer auto-play, outcome resolution and bankroll settlement.
//
// The main type is Engine. It draws cards through a Provider (a remote or
// local shuffled shoe), writes every transition through to a store.Store so a
// round survives a restart, and publishes events for the presentation layer.
//
// # Basic Usage
//
//	engine := blackjack.NewEngine(provider, store, logger, blackjack.WithStartingBank(500))
//	if ok, _ := engine.Resume(ctx); !ok {
//	    engine.NewGame(ctx, true)
//	}
//	engine.AddToBet(ctx, 25)
//	engine.ConfirmBet(ctx) // deals dealer(hidden), player, dealer, player
//	engine.Hit(ctx)
//	engine.Stand(ctx)      // dealer draws to 17, round settles
//	engine.NextRound(ctx)
//
// # States
//
// An Engine moves through Initial → Betting → Playing → Result and back to
// Betting. A blackjack on the initial deal and a player bust both jump straight
// to Result. Calling an operation outside its state returns an error matching
// ErrInvalidTransition and leaves the round untouched.
//
// # Concurrency
//
// An Engine is not safe for concurrent use. Callers run one operation at a
// time per engine and keep their controls disabled while it is in flight.
package blackjack
