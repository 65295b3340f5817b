// Package config loads blackjack.hcl and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
)

// DefaultFile is read when no config path is given
const DefaultFile = "blackjack.hcl"

// Environment overrides, applied after the file
const (
	EnvDatabaseURL = "BLACKJACK_DATABASE_URL"
	EnvDeckURL     = "BLACKJACK_DECK_URL"
	EnvLogLevel    = "BLACKJACK_LOG_LEVEL"
)

// Config is the complete blackjack configuration
type Config struct {
	Game   *GameSettings   `hcl:"game,block"`
	Deck   *DeckSettings   `hcl:"deck,block"`
	Store  *StoreSettings  `hcl:"store,block"`
	Log    *LogSettings    `hcl:"log,block"`
	Server *ServerSettings `hcl:"server,block"`
}

// GameSettings are the table rules
type GameSettings struct {
	StartingBank int `hcl:"starting_bank,optional"`
	DeckCount    int `hcl:"deck_count,optional"`
	MinBet       int `hcl:"min_bet,optional"`
}

// DeckSettings pick where cards come from
type DeckSettings struct {
	Provider string `hcl:"provider,optional"`
	BaseURL  string `hcl:"base_url,optional"`
	Timeout  string `hcl:"timeout,optional"`
	Seed     int64  `hcl:"seed,optional"`
}

// StoreSettings pick where rounds are saved
type StoreSettings struct {
	Backend string `hcl:"backend,optional"`
	Path    string `hcl:"path,optional"`
	DSN     string `hcl:"dsn,optional"`
	Prefix  string `hcl:"prefix,optional"`
}

// LogSettings control the log file and level
type LogSettings struct {
	Level string `hcl:"level,optional"`
	File  string `hcl:"file,optional"`
}

// ServerSettings configure the websocket server
type ServerSettings struct {
	Address string `hcl:"address,optional"`
}

const (
	ProviderAPI   = "api"
	ProviderLocal = "local"
)

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Game: &GameSettings{
			StartingBank: 500,
			DeckCount:    6,
			MinBet:       1,
		},
		Deck: &DeckSettings{
			Provider: ProviderAPI,
			BaseURL:  "https://www.deckofcardsapi.com",
			Timeout:  "10s",
		},
		Store: &StoreSettings{
			Backend: "file",
			Path:    "blackjack-save.json",
		},
		Log: &LogSettings{
			Level: "info",
			File:  "blackjack.log",
		},
		Server: &ServerSettings{
			Address: "localhost:8080",
		},
	}
}

// Load reads filename, fills anything it leaves out from Default and then
// applies .env and environment overrides. A missing file is not an error.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(filename); err == nil {
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCLFile(filename)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
		}

		var loaded Config
		diags = gohcl.DecodeBody(file.Body, nil, &loaded)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
		}
		cfg.merge(&loaded)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	// .env is optional, and never overrides variables already set
	_ = godotenv.Load()
	cfg.applyEnv(os.Getenv)

	return cfg, nil
}

func (c *Config) merge(o *Config) {
	if g := o.Game; g != nil {
		if g.StartingBank != 0 {
			c.Game.StartingBank = g.StartingBank
		}
		if g.DeckCount != 0 {
			c.Game.DeckCount = g.DeckCount
		}
		if g.MinBet != 0 {
			c.Game.MinBet = g.MinBet
		}
	}
	if d := o.Deck; d != nil {
		if d.Provider != "" {
			c.Deck.Provider = d.Provider
		}
		if d.BaseURL != "" {
			c.Deck.BaseURL = d.BaseURL
		}
		if d.Timeout != "" {
			c.Deck.Timeout = d.Timeout
		}
		c.Deck.Seed = d.Seed
	}
	if s := o.Store; s != nil {
		if s.Backend != "" {
			c.Store.Backend = s.Backend
		}
		if s.Path != "" {
			c.Store.Path = s.Path
		}
		c.Store.DSN = s.DSN
		c.Store.Prefix = s.Prefix
	}
	if l := o.Log; l != nil {
		if l.Level != "" {
			c.Log.Level = l.Level
		}
		if l.File != "" {
			c.Log.File = l.File
		}
	}
	if s := o.Server; s != nil && s.Address != "" {
		c.Server.Address = s.Address
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	if dsn := getenv(EnvDatabaseURL); dsn != "" {
		c.Store.DSN = dsn
		if c.Store.Backend == "file" {
			c.Store.Backend = "postgres"
		}
	}
	if url := getenv(EnvDeckURL); url != "" {
		c.Deck.BaseURL = url
	}
	if level := getenv(EnvLogLevel); level != "" {
		c.Log.Level = level
	}
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	if c.Game.StartingBank <= 0 {
		return fmt.Errorf("game: starting_bank must be positive, got %d", c.Game.StartingBank)
	}
	if c.Game.DeckCount < 1 || c.Game.DeckCount > 20 {
		return fmt.Errorf("game: deck_count must be between 1 and 20, got %d", c.Game.DeckCount)
	}
	if c.Game.MinBet < 1 || c.Game.MinBet > c.Game.StartingBank {
		return fmt.Errorf("game: min_bet must be between 1 and starting_bank, got %d", c.Game.MinBet)
	}

	switch c.Deck.Provider {
	case ProviderAPI:
		if c.Deck.BaseURL == "" {
			return errors.New("deck: base_url is required for the api provider")
		}
	case ProviderLocal:
	default:
		return fmt.Errorf("deck: invalid provider %q", c.Deck.Provider)
	}
	if _, err := c.DrawTimeout(); err != nil {
		return err
	}

	switch c.Store.Backend {
	case "memory":
	case "file":
		if c.Store.Path == "" {
			return errors.New("store: path is required for the file backend")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store: dsn (or %s) is required for the postgres backend", EnvDatabaseURL)
		}
	default:
		return fmt.Errorf("store: invalid backend %q", c.Store.Backend)
	}
	// a saved round would point at a shoe that died with the last process
	if c.Deck.Provider == ProviderLocal && c.Store.Backend != "memory" {
		return fmt.Errorf("deck: the local provider only works with the memory store, got %q", c.Store.Backend)
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// DrawTimeout parses deck.timeout
func (c *Config) DrawTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Deck.Timeout)
	if err != nil {
		return 0, fmt.Errorf("deck: invalid timeout %q: %w", c.Deck.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("deck: timeout must not be negative, got %s", d)
	}
	return d, nil
}

// LogLevel parses log.level
func (c *Config) LogLevel() (log.Level, error) {
	level, err := log.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("log: %w", err)
	}
	return level, nil
}
