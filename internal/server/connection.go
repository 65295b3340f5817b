package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/blackjack/internal/blackjack"
)

// Connection is one browser session playing its own engine
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	sessionID string
	engine    *blackjack.Engine
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// NewConnection wraps conn. engine must be used by nothing else.
func NewConnection(ctx context.Context, conn *websocket.Conn, sessionID string, engine *blackjack.Engine, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(ctx)

	c := &Connection{
		conn:      conn,
		send:      make(chan *Message, 256),
		sessionID: sessionID,
		engine:    engine,
		logger:    logger.WithPrefix("conn").With("session", sessionID),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	engine.EventBus().Subscribe(c)
	return c
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed once the connection has shut down
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.engine.EventBus().Unsubscribe(c)
		c.cancel()
		err = c.conn.Close()
		close(c.done)
	})
	return err
}

// OnEvent forwards engine events to the client
func (c *Connection) OnEvent(event blackjack.Event) {
	msg, err := MessageFromEvent(event)
	if err != nil {
		c.logger.Error("Failed to encode event", "type", event.EventType(), "error", err)
		return
	}
	if msg != nil {
		_ = c.SendMessage(msg)
	}
}

// SendMessage queues a message for the client
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var ErrConnectionClosed = errors.New("connection closed")

// readPump reads client commands and runs them one at a time, so a session
// never has two engine operations in flight
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// handleMessage runs one client command against the engine
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type)
	ctx := c.ctx
	var err error

	switch msg.Type {
	case MessageTypeResume:
		err = c.resume(ctx)
	case MessageTypeNew:
		var data NewGameData
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				c.sendError(msg, "invalid_message", "Failed to parse new game data")
				return
			}
		}
		err = c.engine.NewGame(ctx, data.Reset)
	case MessageTypeBet:
		var data BetData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg, "invalid_message", "Failed to parse bet data")
			return
		}
		_, err = c.engine.AddToBet(ctx, data.Amount)
	case MessageTypeClear:
		err = c.engine.ClearBet(ctx)
	case MessageTypeDeal:
		err = c.engine.ConfirmBet(ctx)
	case MessageTypeHit:
		err = c.engine.Hit(ctx)
	case MessageTypeStand:
		err = c.engine.Stand(ctx)
	case MessageTypeNext:
		err = c.engine.NextRound(ctx)
	default:
		c.sendError(msg, "unknown_message", "Unknown message type: "+string(msg.Type))
		return
	}

	if err != nil {
		c.logger.Debug("Command failed", "type", msg.Type, "error", err)
		c.sendError(msg, errorCode(err), err.Error())
	}
	c.sendState(msg.RequestID)
}

// resume restores the saved round for this session, or starts one
func (c *Connection) resume(ctx context.Context) error {
	if c.engine.State() != blackjack.StateInitial {
		return nil
	}
	ok, err := c.engine.Resume(ctx)
	if err != nil {
		c.logger.Warn("Discarding saved game", "error", err)
	}
	if ok {
		return nil
	}
	return c.engine.NewGame(ctx, true)
}

func (c *Connection) sendState(requestID string) {
	msg, err := NewMessage(MessageTypeState, StateFromTable(c.engine.Table()))
	if err != nil {
		c.logger.Error("Failed to encode state", "error", err)
		return
	}
	msg.RequestID = requestID
	_ = c.SendMessage(msg)
}

func (c *Connection) sendError(req *Message, code, message string) {
	msg, err := NewMessage(MessageTypeError, ErrorData{Code: code, Message: message})
	if err != nil {
		return
	}
	msg.RequestID = req.RequestID
	_ = c.SendMessage(msg)
}

func errorCode(err error) string {
	var provErr *blackjack.ProviderError
	switch {
	case errors.Is(err, blackjack.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, blackjack.ErrInvalidBet):
		return "invalid_bet"
	case errors.Is(err, blackjack.ErrProviderTimeout):
		return "provider_timeout"
	case errors.As(err, &provErr):
		return "provider_error"
	default:
		return "internal_error"
	}
}
