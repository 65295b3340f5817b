// Package deckapi is a client for the deckofcardsapi.com shuffled shoe service.
package deckapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/internal/deck"
)

// DefaultBaseURL is the public deck service
const DefaultBaseURL = "https://www.deckofcardsapi.com"

// ErrShortDraw is returned when the service hands back fewer cards than requested
var ErrShortDraw = errors.New("deck service returned fewer cards than requested")

// APIError is returned for non-2xx responses or a body reporting success=false
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("deck service http %d: %s", e.StatusCode, e.Body)
}

// Client talks to the deck service over HTTP
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout on the default http.Client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for baseURL (DefaultBaseURL when empty)
func New(baseURL string, logger *log.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger.WithPrefix("deckapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type shoeResponse struct {
	Success   bool   `json:"success"`
	DeckID    string `json:"deck_id"`
	Shuffled  bool   `json:"shuffled"`
	Remaining int    `json:"remaining"`
	Error     string `json:"error"`
}

type apiCard struct {
	Code  string `json:"code"`
	Image string `json:"image"`
	Value string `json:"value"`
	Suit  string `json:"suit"`
}

type drawResponse struct {
	Success   bool      `json:"success"`
	DeckID    string    `json:"deck_id"`
	Cards     []apiCard `json:"cards"`
	Remaining int       `json:"remaining"`
	Error     string    `json:"error"`
}

// NewShoe requests a freshly shuffled shoe of the given number of decks
func (c *Client) NewShoe(ctx context.Context, decks int) (string, error) {
	q := url.Values{"deck_count": {strconv.Itoa(decks)}}
	var resp shoeResponse
	if err := c.get(ctx, "/api/deck/new/shuffle/", q, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.DeckID == "" {
		return "", &APIError{StatusCode: http.StatusOK, Body: coalesce(resp.Error, "no deck_id in response")}
	}

	c.logger.Info("Created shoe", "shoe", resp.DeckID, "decks", decks, "remaining", resp.Remaining)
	return resp.DeckID, nil
}

// Draw deals count cards from the shoe, in order, all face up
func (c *Client) Draw(ctx context.Context, shoeID string, count int) ([]deck.Card, error) {
	q := url.Values{"count": {strconv.Itoa(count)}}
	var resp drawResponse
	if err := c.get(ctx, "/api/deck/"+url.PathEscape(shoeID)+"/draw/", q, &resp); err != nil {
		return nil, err
	}
	if len(resp.Cards) < count {
		c.logger.Warn("Short draw", "shoe", shoeID, "want", count, "got", len(resp.Cards), "remaining", resp.Remaining)
		return nil, fmt.Errorf("%w: want %d, got %d", ErrShortDraw, count, len(resp.Cards))
	}
	if !resp.Success {
		return nil, &APIError{StatusCode: http.StatusOK, Body: coalesce(resp.Error, "draw failed")}
	}

	cards := make([]deck.Card, 0, count)
	for _, ac := range resp.Cards[:count] {
		card, err := toCard(ac)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}

	c.logger.Debug("Drew cards", "shoe", shoeID, "count", count, "remaining", resp.Remaining)
	return cards, nil
}

// Remaining reports how many cards are left in the shoe
func (c *Client) Remaining(ctx context.Context, shoeID string) (int, error) {
	var resp shoeResponse
	if err := c.get(ctx, "/api/deck/"+url.PathEscape(shoeID)+"/", nil, &resp); err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, &APIError{StatusCode: http.StatusOK, Body: coalesce(resp.Error, "unknown shoe")}
	}
	return resp.Remaining, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("deck service request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read deck service response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode deck service response: %w", err)
	}
	return nil
}

func toCard(ac apiCard) (deck.Card, error) {
	rank, err := deck.ParseRank(ac.Value)
	if err != nil {
		return deck.Card{}, fmt.Errorf("card %s: %w", ac.Code, err)
	}
	suit, err := deck.ParseSuit(ac.Suit)
	if err != nil {
		return deck.Card{}, fmt.Errorf("card %s: %w", ac.Code, err)
	}
	card := deck.NewCard(rank, suit)
	if ac.Image != "" {
		card.Image = ac.Image
	}
	return card, nil
}

func coalesce(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
