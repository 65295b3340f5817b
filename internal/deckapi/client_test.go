package deckapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/internal/deck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, log.New(io.Discard))
}

func TestNewShoe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/deck/new/shuffle/", r.URL.Path)
		assert.Equal(t, "6", r.URL.Query().Get("deck_count"))
		_, _ = io.WriteString(w, `{"success": true, "deck_id": "3p40paa87x90", "shuffled": true, "remaining": 312}`)
	})

	id, err := c.NewShoe(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, "3p40paa87x90", id)
}

func TestNewShoeUnsuccessful(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success": false, "error": "deck_count too large"}`)
	})

	_, err := c.NewShoe(context.Background(), 100)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Body, "too large")
}

func TestDraw(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/deck/kxozasf3edqu/draw/", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("count"))
		_, _ = io.WriteString(w, `{
			"success": true,
			"deck_id": "kxozasf3edqu",
			"cards": [
				{"code": "6H", "image": "https://deckofcardsapi.com/static/img/6H.png", "value": "6", "suit": "HEARTS"},
				{"code": "AS", "image": "https://deckofcardsapi.com/static/img/AS.png", "value": "ACE", "suit": "SPADES"}
			],
			"remaining": 50
		}`)
	})

	cards, err := c.Draw(context.Background(), "kxozasf3edqu", 2)
	require.NoError(t, err)
	require.Len(t, cards, 2)

	assert.Equal(t, deck.Six, cards[0].Rank)
	assert.Equal(t, deck.Hearts, cards[0].Suit)
	assert.Equal(t, "https://deckofcardsapi.com/static/img/6H.png", cards[0].Image)
	assert.True(t, cards[0].FaceUp)
	assert.Equal(t, deck.Ace, cards[1].Rank)
	assert.Equal(t, 11, cards[1].Value())
}

func TestDrawShort(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success": false, "cards": [{"code": "KD", "image": "", "value": "KING", "suit": "DIAMONDS"}], "remaining": 0, "error": "Not enough cards remaining to draw 4 additional"}`)
	})

	_, err := c.Draw(context.Background(), "abc", 4)
	assert.ErrorIs(t, err, ErrShortDraw)
}

func TestDrawBadCard(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success": true, "cards": [{"code": "XX", "value": "JOKER", "suit": "NONE"}], "remaining": 10}`)
	})

	_, err := c.Draw(context.Background(), "abc", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XX")
}

func TestHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := c.Draw(context.Background(), "abc", 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestRemaining(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/deck/abc/", r.URL.Path)
		_, _ = io.WriteString(w, `{"success": true, "deck_id": "abc", "remaining": 287}`)
	})

	n, err := c.Remaining(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 287, n)
}

func TestRequestHonoursContext(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.NewShoe(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewDefaults(t *testing.T) {
	c := New("", log.New(io.Discard), WithTimeout(5*time.Second))
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, 5*time.Second, c.http.Timeout)
}
