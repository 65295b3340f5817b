package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/sanity-io/litter"

	"github.com/lox/blackjack/internal/config"
)

// InspectCmd loads the saved round without playing it
type InspectCmd struct{}

type remainer interface {
	Remaining(ctx context.Context, shoeID string) (int, error)
}

func (c *InspectCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := cli.setup(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	engine, err := rt.newEngine()
	if err != nil {
		return err
	}

	ok, err := engine.Resume(ctx)
	if err != nil {
		return fmt.Errorf("saved game is unreadable: %w", err)
	}
	if !ok {
		pterm.Info.Println("No saved game")
		return nil
	}

	table := engine.Table()
	fmt.Println(litter.Sdump(table))

	// in-process shoes do not outlive the process that shuffled them
	if r, ok := rt.provider.(remainer); ok && rt.cfg.Deck.Provider != config.ProviderLocal {
		n, err := r.Remaining(ctx, table.ShoeID)
		if err != nil {
			pterm.Warning.Printfln("Could not read shoe %s: %v", table.ShoeID, err)
			return nil
		}
		pterm.Info.Printfln("Shoe %s has %d cards remaining", table.ShoeID, n)
	}
	return nil
}
