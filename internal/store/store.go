// Package store holds the key-value persistence backends used to save and
// resume a blackjack round.
package store

import (
	"context"
	"fmt"
	"sync"
)

// Store is a string key-value store. Get reports ok=false for absent keys.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Backend names accepted by Open
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend
type Options struct {
	Backend string
	Path    string
	DSN     string
	Prefix  string
}

// Open creates the configured store. The returned close function releases
// any backend resources and is never nil.
func Open(ctx context.Context, opts Options) (Store, func(), error) {
	var (
		s       Store
		closeFn = func() {}
	)

	switch opts.Backend {
	case BackendMemory, "":
		s = NewMemory()
	case BackendFile:
		f, err := OpenFile(opts.Path)
		if err != nil {
			return nil, nil, err
		}
		s = f
	case BackendPostgres:
		pg, err := OpenPostgres(ctx, opts.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("failed to migrate postgres store: %w", err)
		}
		s = pg
		closeFn = pg.Close
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %q", opts.Backend)
	}

	if opts.Prefix != "" {
		s = Prefixed(s, opts.Prefix)
	}
	return s, closeFn, nil
}

// Memory is an in-process Store
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Keys returns a copy of the stored keys, for tests and inspection
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

type prefixed struct {
	inner  Store
	prefix string
}

// Prefixed namespaces every key of inner under prefix
func Prefixed(inner Store, prefix string) Store {
	return &prefixed{inner: inner, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) (string, bool, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key, value string) error {
	return p.inner.Set(ctx, p.prefix+key, value)
}
