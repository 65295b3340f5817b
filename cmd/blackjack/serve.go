package main

import (
	"os"

	"github.com/lox/blackjack/internal/server"
)

// ServeCmd serves websocket sessions
type ServeCmd struct {
	Addr string `help:"Listen address (overrides server.address)"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := cli.setup(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	opts, err := rt.engineOptions()
	if err != nil {
		return err
	}

	addr := rt.cfg.Server.Address
	if c.Addr != "" {
		addr = c.Addr
	}

	rt.logger.Info("Starting blackjack server",
		"addr", addr,
		"provider", rt.cfg.Deck.Provider,
		"store", rt.cfg.Store.Backend,
		"starting_bank", rt.cfg.Game.StartingBank,
		"min_bet", rt.cfg.Game.MinBet)

	return server.New(addr, rt.provider, rt.store, rt.logger, opts...).Start(ctx)
}
