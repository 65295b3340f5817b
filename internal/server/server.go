// Package server exposes blackjack sessions over websockets. Every
// connection plays its own engine whose round is saved under the session id.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Server represents the WebSocket server
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	provider blackjack.Provider
	store    store.Store
	options  []blackjack.Option
	logger   *log.Logger

	mu       sync.Mutex
	sessions map[string]*Connection
}

// New creates a server. opts are applied to every session's engine.
func New(addr string, provider blackjack.Provider, st store.Store, logger *log.Logger, opts ...blackjack.Option) *Server {
	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		provider: provider,
		store:    st,
		options:  opts,
		logger:   logger.WithPrefix("server"),
		sessions: make(map[string]*Connection),
	}
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)
	return r
}

// Start serves until ctx is cancelled, then shuts down open sessions
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting WebSocket server", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Stop()
	return err
}

// Stop closes every open session
func (s *Server) Stop() {
	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.sessions))
	for _, c := range s.sessions {
		if c != nil {
			conns = append(conns, c)
		}
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

// Sessions returns the number of connected sessions
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// handleWebSocket upgrades the request and attaches an engine for the session.
// A session may only be played from one connection at a time.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if _, err := uuid.Parse(sessionID); err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if _, busy := s.sessions[sessionID]; busy {
		s.mu.Unlock()
		http.Error(w, "session already connected", http.StatusConflict)
		return
	}
	// reserve before upgrading so a racing request sees the conflict
	s.sessions[sessionID] = nil
	s.mu.Unlock()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		s.release(sessionID)
		return
	}

	st := store.Prefixed(s.store, fmt.Sprintf("session/%s/", sessionID))
	engine := blackjack.NewEngine(s.provider, st, s.logger, s.options...)
	conn := NewConnection(context.Background(), ws, sessionID, engine, s.logger)

	s.mu.Lock()
	s.sessions[sessionID] = conn
	s.mu.Unlock()
	s.logger.Info("Client connected", "session", sessionID, "remote", r.RemoteAddr)

	if msg, err := NewMessage(MessageTypeSession, SessionData{SessionID: sessionID}); err == nil {
		_ = conn.SendMessage(msg)
	}
	conn.Start()

	go func() {
		<-conn.Done()
		s.release(sessionID)
		s.logger.Info("Client disconnected", "session", sessionID)
	}()
}

func (s *Server) release(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}
