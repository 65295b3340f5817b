package main

import (
	"fmt"

	"github.com/lox/blackjack/internal/tui"
)

// PlayCmd runs the terminal game. Logs go to the configured log file since
// the TUI owns the screen.
type PlayCmd struct {
	New bool `help:"Ignore any saved round and start a fresh game"`
}

func (c *PlayCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := cli.setup(ctx, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	engine, err := rt.newEngine()
	if err != nil {
		return err
	}
	if c.New {
		if err := engine.NewGame(ctx, true); err != nil {
			return fmt.Errorf("failed to start game: %w", err)
		}
	}

	rt.logger.Info("Starting game", "provider", rt.cfg.Deck.Provider, "store", rt.cfg.Store.Backend)
	return tui.Run(ctx, engine, rt.logger)
}
