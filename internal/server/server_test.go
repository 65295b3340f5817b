package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*Server
	http     *httptest.Server
	provider *blackjack.ScriptedProvider
	store    *store.Memory
}

func newTestServer(t *testing.T, cards string) *testServer {
	t.Helper()
	p := blackjack.NewScriptedProvider(cards)
	st := store.NewMemory()
	srv := New("", p, st, log.New(io.Discard))
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Stop()
		hs.Close()
	})
	return &testServer{Server: srv, http: hs, provider: p, store: st}
}

func (ts *testServer) dial(t *testing.T, session string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	if session != "" {
		u += "?session=" + session
	}
	return websocket.DefaultDialer.Dial(u, nil)
}

// connect dials and consumes the session greeting
func (ts *testServer) connect(t *testing.T, session string) (*websocket.Conn, string) {
	t.Helper()
	ws, _, err := ts.dial(t, session)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	var data SessionData
	readData(t, readUntil(t, ws, MessageTypeSession), &data)
	require.NotEmpty(t, data.SessionID)
	return ws, data.SessionID
}

func send(t *testing.T, ws *websocket.Conn, typ MessageType, data any) {
	t.Helper()
	msg := map[string]any{"type": typ, "requestId": "r-" + string(typ)}
	if data != nil {
		msg["data"] = data
	}
	require.NoError(t, ws.WriteJSON(msg))
}

// readUntil returns the next message of type typ, collecting the ones before it
func readUntil(t *testing.T, ws *websocket.Conn, typ MessageType) *Message {
	t.Helper()
	msg, _ := collectUntil(t, ws, typ)
	return msg
}

func collectUntil(t *testing.T, ws *websocket.Conn, typ MessageType) (*Message, []*Message) {
	t.Helper()
	var seen []*Message
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg Message
		require.NoError(t, ws.ReadJSON(&msg))
		if msg.Type == typ {
			return &msg, seen
		}
		seen = append(seen, &msg)
	}
}

func readData(t *testing.T, msg *Message, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(msg.Data, out))
}

func readState(t *testing.T, ws *websocket.Conn) StateData {
	t.Helper()
	var st StateData
	readData(t, readUntil(t, ws, MessageTypeState), &st)
	return st
}

func TestServerHealth(t *testing.T) {
	ts := newTestServer(t, "")

	resp, err := http.Get(ts.http.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestPlayRoundOverWebsocket(t *testing.T) {
	ts := newTestServer(t, "9S KH 7D QC 2S")
	ws, _ := ts.connect(t, "")

	send(t, ws, MessageTypeResume, nil)
	st := readState(t, ws)
	assert.Equal(t, "betting", st.State)
	assert.Equal(t, 500, st.Bank)

	send(t, ws, MessageTypeBet, BetData{Amount: 10})
	st = readState(t, ws)
	assert.Equal(t, 10, st.Bet)

	send(t, ws, MessageTypeDeal, nil)
	stateMsg, before := collectUntil(t, ws, MessageTypeState)
	assert.Equal(t, "r-deal", stateMsg.RequestID)

	var cards []CardData
	for _, m := range before {
		if m.Type == MessageTypeCard {
			var c CardData
			readData(t, m, &c)
			cards = append(cards, c)
		}
	}
	require.Len(t, cards, 4)
	hole := cards[0]
	assert.Equal(t, "dealer0", hole.SlotID)
	assert.False(t, hole.FaceUp)
	assert.Empty(t, hole.Label)
	assert.Equal(t, deck.BackImage, hole.Image)
	assert.Equal(t, "K♥", cards[1].Label)

	readData(t, stateMsg, &st)
	assert.Equal(t, "playing", st.State)
	assert.Equal(t, 490, st.Bank)
	assert.Equal(t, 7, st.DealerTotal, "only the up card counts")
	assert.Equal(t, 20, st.PlayerTotal)
	assert.NotContains(t, string(stateMsg.Data), "9S", "hole card never reaches the client")

	send(t, ws, MessageTypeStand, nil)
	var settled SettledData
	readData(t, readUntil(t, ws, MessageTypeSettled), &settled)
	assert.Equal(t, "player_win", settled.Outcome)
	assert.Equal(t, 20, settled.Payout)
	assert.Equal(t, 510, settled.Bank)

	st = readState(t, ws)
	assert.Equal(t, "result", st.State)
	assert.Equal(t, blackjack.ResultPlayerWon, st.Result)
	assert.True(t, st.Dealer[0].FaceUp)
	assert.Equal(t, "9♠", st.Dealer[0].Label)
}

func TestErrorsAreReported(t *testing.T) {
	ts := newTestServer(t, "")
	ws, _ := ts.connect(t, "")
	send(t, ws, MessageTypeResume, nil)
	readState(t, ws)

	tests := []struct {
		typ  MessageType
		data any
		code string
	}{
		{MessageTypeHit, nil, "invalid_transition"},
		{MessageTypeBet, BetData{Amount: -5}, "invalid_bet"},
		{MessageTypeDeal, nil, "invalid_bet"},
		{MessageTypeBet, "ten", "invalid_message"},
		{"split", nil, "unknown_message"},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			send(t, ws, tt.typ, tt.data)
			msg := readUntil(t, ws, MessageTypeError)
			var data ErrorData
			readData(t, msg, &data)
			assert.Equal(t, tt.code, data.Code)
			assert.Equal(t, "r-"+string(tt.typ), msg.RequestID)
		})
	}
}

func TestSessionResumesAfterReconnect(t *testing.T) {
	ts := newTestServer(t, "9S 5H 7D 4C")
	id := uuid.NewString()

	ws, got := ts.connect(t, id)
	assert.Equal(t, id, got)
	send(t, ws, MessageTypeResume, nil)
	readState(t, ws)
	send(t, ws, MessageTypeBet, BetData{Amount: 10})
	readState(t, ws)
	send(t, ws, MessageTypeDeal, nil)
	st := readState(t, ws)
	require.Equal(t, "playing", st.State)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return ts.Sessions() == 0 }, 5*time.Second, 10*time.Millisecond)

	ws, _ = ts.connect(t, id)
	send(t, ws, MessageTypeResume, nil)
	st = readState(t, ws)
	assert.Equal(t, "playing", st.State)
	assert.Equal(t, 490, st.Bank)
	assert.Equal(t, 10, st.Bet)
	assert.Len(t, st.Player, 2)
	assert.False(t, st.Dealer[0].FaceUp)

	assert.Contains(t, ts.store.Keys(), "session/"+id+"/gameState")
}

func TestSessionsAreIsolated(t *testing.T) {
	ts := newTestServer(t, "")
	a, idA := ts.connect(t, "")
	b, idB := ts.connect(t, "")
	assert.NotEqual(t, idA, idB)

	for _, ws := range []*websocket.Conn{a, b} {
		send(t, ws, MessageTypeResume, nil)
		readState(t, ws)
	}

	send(t, a, MessageTypeBet, BetData{Amount: 50})
	assert.Equal(t, 50, readState(t, a).Bet)

	send(t, b, MessageTypeClear, nil)
	assert.Equal(t, 0, readState(t, b).Bet)
}

func TestSecondConnectionIsRejected(t *testing.T) {
	ts := newTestServer(t, "")
	id := uuid.NewString()
	ts.connect(t, id)

	_, resp, err := ts.dial(t, id)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestInvalidSessionID(t *testing.T) {
	ts := newTestServer(t, "")

	_, resp, err := ts.dial(t, "not-a-uuid")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
