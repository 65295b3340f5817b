package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pterm/pterm"

	"github.com/lox/blackjack/internal/simulator"
	"github.com/lox/blackjack/internal/store"
)

// SimulateCmd plays automated sessions against local shoes
type SimulateCmd struct {
	Sessions int   `default:"100" help:"Number of independent sessions"`
	Rounds   int   `default:"100" help:"Rounds per session"`
	Workers  int   `default:"8" help:"Sessions played concurrently"`
	Bet      int   `default:"10" help:"Wager per round"`
	StandOn  int   `default:"17" help:"Player stands at or above this total"`
	Decks    int   `default:"6" help:"Decks per shoe"`
	Seed     int64 `help:"Base seed (random when zero)"`
}

func (c *SimulateCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	// engine logs would fight the spinner for the terminal
	var out io.Writer = io.Discard
	if cli.Debug {
		out = os.Stderr
	}
	logger := log.NewWithOptions(out, log.Options{Level: log.DebugLevel})

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Playing %d sessions of %d rounds...", c.Sessions, c.Rounds))
	start := time.Now()

	stats, err := simulator.New(simulator.Config{
		Sessions: c.Sessions,
		Rounds:   c.Rounds,
		Workers:  c.Workers,
		Bet:      c.Bet,
		StandOn:  c.StandOn,
		Decks:    c.Decks,
		Seed:     seed,
		Logger:   logger,
		Store:    store.NewMemory(),
	}).Run(ctx)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	spinner.Success(fmt.Sprintf("Played %d rounds in %s (seed %d)", stats.Rounds, time.Since(start).Round(time.Millisecond), seed))

	return pterm.DefaultTable.WithHasHeader().WithData(statsTable(stats)).Render()
}

func statsTable(s *simulator.Stats) pterm.TableData {
	pct := func(n int) string {
		if s.Rounds == 0 {
			return "-"
		}
		return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(s.Rounds))
	}

	return pterm.TableData{
		{"Metric", "Count", "Share"},
		{"Rounds", fmt.Sprint(s.Rounds), ""},
		{"Player wins", fmt.Sprint(s.PlayerWins), pct(s.PlayerWins)},
		{"Dealer wins", fmt.Sprint(s.DealerWins), pct(s.DealerWins)},
		{"Pushes", fmt.Sprint(s.Pushes), pct(s.Pushes)},
		{"Player blackjacks", fmt.Sprint(s.PlayerBlackjacks), pct(s.PlayerBlackjacks)},
		{"Dealer blackjacks", fmt.Sprint(s.DealerBlackjacks), pct(s.DealerBlackjacks)},
		{"Player busts", fmt.Sprint(s.PlayerBusts), pct(s.PlayerBusts)},
		{"Dealer busts", fmt.Sprint(s.DealerBusts), pct(s.DealerBusts)},
		{"Shoes", fmt.Sprint(s.Shoes), ""},
		{"Bankrupt", fmt.Sprint(s.Bankrupt), ""},
		{"Wagered", fmt.Sprintf("$%d", s.Wagered), ""},
		{"Net", fmt.Sprintf("$%d", s.Net), fmt.Sprintf("%+.2f%%", 100*s.Edge())},
	}
}
