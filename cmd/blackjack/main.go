package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/config"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/deckapi"
	"github.com/lox/blackjack/internal/store"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Config  string           `short:"c" default:"blackjack.hcl" help:"Path to the HCL config file" type:"path"`
	Debug   bool             `help:"Enable debug logging"`

	Play     PlayCmd     `cmd:"" default:"withargs" help:"Play blackjack in the terminal"`
	Serve    ServeCmd    `cmd:"" help:"Serve blackjack sessions over websockets"`
	Simulate SimulateCmd `cmd:"" help:"Play automated sessions and report the results"`
	Inspect  InspectCmd  `cmd:"" help:"Print the saved round"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("blackjack"),
		kong.Description("Single-player blackjack against the dealer"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}

// runtime is everything a command needs, built from the loaded config
type runtime struct {
	cfg      *config.Config
	logger   *log.Logger
	provider blackjack.Provider
	store    store.Store
	closers  []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// engineOptions maps the game settings onto engine options
func (r *runtime) engineOptions() ([]blackjack.Option, error) {
	timeout, err := r.cfg.DrawTimeout()
	if err != nil {
		return nil, err
	}
	return []blackjack.Option{
		blackjack.WithStartingBank(r.cfg.Game.StartingBank),
		blackjack.WithDeckCount(r.cfg.Game.DeckCount),
		blackjack.WithMinBet(r.cfg.Game.MinBet),
		blackjack.WithDrawTimeout(timeout),
	}, nil
}

func (r *runtime) newEngine() (*blackjack.Engine, error) {
	opts, err := r.engineOptions()
	if err != nil {
		return nil, err
	}
	return blackjack.NewEngine(r.provider, r.store, r.logger, opts...), nil
}

// setup loads config and opens the provider and store. Logs go to out, or to
// the configured log file when out is nil.
func (cli *CLI) setup(ctx context.Context, out io.Writer) (*runtime, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &runtime{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			r.Close()
		}
	}()

	if out == nil {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		r.closers = append(r.closers, func() { _ = f.Close() })
		out = f
	}

	level, _ := cfg.LogLevel()
	if cli.Debug {
		level = log.DebugLevel
	}
	r.logger = log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Prefix:          "blackjack",
		Level:           level,
	})

	switch cfg.Deck.Provider {
	case config.ProviderLocal:
		r.logger.Debug("Using local shoes", "seed", cfg.Deck.Seed)
		r.provider = deck.NewLocalProvider(cfg.Deck.Seed)
	default:
		var opts []deckapi.Option
		if d, _ := cfg.DrawTimeout(); d > 0 {
			opts = append(opts, deckapi.WithTimeout(d))
		}
		r.provider = deckapi.New(cfg.Deck.BaseURL, r.logger, opts...)
	}

	st, closeStore, err := store.Open(ctx, store.Options{
		Backend: cfg.Store.Backend,
		Path:    cfg.Store.Path,
		DSN:     cfg.Store.DSN,
		Prefix:  cfg.Store.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	r.store = st
	r.closers = append(r.closers, closeStore)

	ok = true
	return r, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
