package blackjack

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resumeFrom builds a second engine over the same store, as a restart would
func resumeFrom(t *testing.T, te *TestEngine) (*TestEngine, bool) {
	t.Helper()
	next := NewTestEngine("")
	next.Store = te.Store
	bus := NewEventBus()
	bus.Subscribe(next.Events)
	next.Engine = NewEngine(te.Provider, te.Store, log.New(io.Discard), WithEventBus(bus))

	ok, err := next.Resume(context.Background())
	require.NoError(t, err)
	return next, ok
}

func TestResumeWithoutSave(t *testing.T) {
	te := NewTestEngine("")
	ok, err := te.Resume(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, StateInitial, te.State())
	assert.Empty(t, te.Events.Events())
}

func TestResumeMidRound(t *testing.T) {
	ctx := context.Background()
	te := dealRound(t, "9S 5H 7D 4C 3S 2H", 25)
	require.NoError(t, te.Hit(ctx))
	require.Equal(t, StatePlaying, te.State())

	resumed, ok := resumeFrom(t, te)
	require.True(t, ok)

	assert.Equal(t, StatePlaying, resumed.State())
	assert.Equal(t, te.ShoeID(), resumed.ShoeID())
	assert.Equal(t, 475, resumed.Bank())
	assert.Equal(t, 25, resumed.Bet())
	assert.Equal(t, te.Dealer().Cards(), resumed.Dealer().Cards())
	assert.Equal(t, te.Player().Cards(), resumed.Player().Cards())
	assert.Equal(t, 12, resumed.Player().Total())
	assert.False(t, resumed.Dealer().Card(0).FaceUp, "hole card stays hidden")

	// display is rebuilt card by card, then the state
	events := resumed.Events.Events()
	var cards int
	for _, ev := range events {
		if ev.EventType() == EventTypeCardShown {
			cards++
		}
	}
	assert.Equal(t, 5, cards)
	assert.Equal(t, EventTypeStateChanged, events[len(events)-1].EventType())

	// play continues on the restored round
	require.NoError(t, resumed.Stand(ctx))
	assert.Equal(t, StateResult, resumed.State())
	assert.Equal(t, ResultDealerWon, resumed.Result())
	assert.Equal(t, 475, resumed.Bank())
}

func TestResumeSettledRound(t *testing.T) {
	te := dealRound(t, "9S AH 7D KC", 10)

	resumed, ok := resumeFrom(t, te)
	require.True(t, ok)
	assert.Equal(t, StateResult, resumed.State())
	assert.Equal(t, ResultPlayerBlackjack, resumed.Result())
	assert.Equal(t, OutcomePlayerWin, resumed.Outcome())
	assert.Equal(t, 510, resumed.Bank())
	assert.Equal(t, 0, resumed.Bet())
	assert.Empty(t, resumed.Events.OfType(EventTypeRoundSettled), "settlement is not replayed")
}

func TestResumeBetting(t *testing.T) {
	ctx := context.Background()
	te := NewTestEngine("")
	require.NoError(t, te.NewGame(ctx, true))
	_, err := te.AddToBet(ctx, 40)
	require.NoError(t, err)

	resumed, ok := resumeFrom(t, te)
	require.True(t, ok)
	assert.Equal(t, StateBetting, resumed.State())
	assert.Equal(t, 40, resumed.Bet())
	assert.Equal(t, 500, resumed.Bank())
}

func TestResumeOnlyFromInitial(t *testing.T) {
	ctx := context.Background()
	te := NewTestEngine("")
	require.NoError(t, te.NewGame(ctx, true))
	_, err := te.Resume(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSavedLayout(t *testing.T) {
	te := dealRound(t, "9S KH 7D QC", 10)
	ctx := context.Background()

	get := func(key string) string {
		v, ok, err := te.Store.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok, key)
		return v
	}

	assert.Equal(t, "shoe-1", get(KeyDeck))
	assert.Equal(t, "playing", get(KeyGameState))
	assert.Equal(t, "10", get(KeyBet))
	assert.Equal(t, "", get(KeyResult))
	assert.JSONEq(t, `{
		"name": "player",
		"bank": 490,
		"cards": [
			{"rank": "KING", "suit": "HEARTS", "image": "https://deckofcardsapi.com/static/img/KH.png", "faceUp": true},
			{"rank": "QUEEN", "suit": "CLUBS", "image": "https://deckofcardsapi.com/static/img/QC.png", "faceUp": true}
		]
	}`, get(string(Player)))
	assert.Contains(t, get(string(Dealer)), `"faceUp":false`)
	assert.NotContains(t, get(string(Dealer)), `"bank"`)
}

func TestResumeCorruptSave(t *testing.T) {
	tests := []struct {
		name string
		data map[string]string
	}{
		{"bad state", map[string]string{KeyDeck: "s", KeyGameState: "sideways"}},
		{"missing state", map[string]string{KeyDeck: "s"}},
		{"bad hand json", map[string]string{KeyDeck: "s", KeyGameState: "betting", "player": "{"}},
		{"bad card", map[string]string{KeyDeck: "s", KeyGameState: "betting", "player": `{"name":"player","cards":[{"rank":"JOKER","suit":"HEARTS"}]}`}},
		{"swapped hands", map[string]string{KeyDeck: "s", KeyGameState: "betting", "dealer": `{"name":"player","cards":[]}`}},
		{"bad bet", map[string]string{KeyDeck: "s", KeyGameState: "betting", KeyBet: "lots"}},
		{"result without text", map[string]string{KeyDeck: "s", KeyGameState: "result"}},
		{"playing without cards", map[string]string{KeyDeck: "s", KeyGameState: "playing"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			te := NewTestEngine("")
			for k, v := range tt.data {
				require.NoError(t, te.Store.Set(ctx, k, v))
			}

			ok, err := te.Resume(ctx)
			assert.False(t, ok)
			assert.ErrorIs(t, err, ErrCorruptSave)
			assert.Equal(t, StateInitial, te.State())
			assert.Empty(t, te.Events.Events())
		})
	}
}

type brokenStore struct {
	store.Store
	failGet bool
	failSet bool
	// failKey fails reads of a single key
	failKey string
}

var errStoreDown = errors.New("store down")

func (b *brokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	if b.failGet || key == b.failKey {
		return "", false, errStoreDown
	}
	return b.Store.Get(ctx, key)
}

func (b *brokenStore) Set(ctx context.Context, key, value string) error {
	if b.failSet {
		return errStoreDown
	}
	return b.Store.Set(ctx, key, value)
}

func TestStoreFailuresAreNotFatal(t *testing.T) {
	ctx := context.Background()
	broken := &brokenStore{Store: store.NewMemory(), failGet: true, failSet: true}
	e := NewEngine(NewScriptedProvider("9S KH 7D QC 2S"), broken, log.New(io.Discard))

	ok, err := e.Resume(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, e.NewGame(ctx, true))
	_, err = e.AddToBet(ctx, 10)
	require.NoError(t, err)
	require.NoError(t, e.ConfirmBet(ctx))
	require.NoError(t, e.Stand(ctx))
	assert.Equal(t, StateResult, e.State())
	assert.Equal(t, 510, e.Bank())
}

func TestResumeWithUnreadableKey(t *testing.T) {
	for _, key := range []string{KeyDeck, KeyGameState, string(Dealer), string(Player), KeyResult, KeyBet} {
		t.Run(key, func(t *testing.T) {
			ctx := context.Background()
			te := dealRound(t, "9S KH 7D QC", 25)

			broken := &brokenStore{Store: te.Store, failKey: key}
			e := NewEngine(te.Provider, broken, log.New(io.Discard))
			ok, err := e.Resume(ctx)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, StateInitial, e.State())
			assert.Zero(t, e.Bet())
		})
	}
}

func TestNilStore(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(NewScriptedProvider(""), nil, log.New(io.Discard))
	ok, err := e.Resume(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, e.NewGame(ctx, true))
}
