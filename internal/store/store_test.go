package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every backend must share
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "deck")
	require.NoError(t, err)
	assert.False(t, ok, "absent key must report ok=false")

	require.NoError(t, s.Set(ctx, "deck", "abc123"))
	v, ok, err := s.Get(ctx, "deck")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc123", v)

	require.NoError(t, s.Set(ctx, "deck", "def456"))
	v, _, err = s.Get(ctx, "deck")
	require.NoError(t, err)
	assert.Equal(t, "def456", v)

	require.NoError(t, s.Set(ctx, "empty", ""))
	v, ok, err = s.Get(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, ok, "empty string is a present value")
	assert.Equal(t, "", v)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save.json")
	f, err := OpenFile(path)
	require.NoError(t, err)
	exerciseStore(t, f)

	// a fresh handle sees what the first one wrote
	reopened, err := OpenFile(path)
	require.NoError(t, err)
	v, ok, err := reopened.Get(context.Background(), "deck")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "def456", v)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, "save.json", e.Name(), "temp files must not remain")
	}
}

func TestFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := OpenFile(path)
	assert.Error(t, err)
}

func TestFileWriteFailureKeepsMemoryConsistent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gone")
	require.NoError(t, os.Mkdir(dir, 0o755))
	f, err := OpenFile(filepath.Join(dir, "save.json"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(dir))

	err = f.Set(context.Background(), "deck", "abc")
	require.Error(t, err)

	_, ok, err := f.Get(context.Background(), "deck")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPrefixed(t *testing.T) {
	inner := NewMemory()
	exerciseStore(t, Prefixed(inner, "session/42/"))

	v, ok, err := inner.Get(context.Background(), "session/42/deck")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "def456", v)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := Open(ctx, Options{Backend: BackendMemory})
	require.NoError(t, err)
	closeFn()
	assert.IsType(t, &Memory{}, s)

	s, closeFn, err = Open(ctx, Options{Backend: BackendFile, Path: filepath.Join(t.TempDir(), "s.json"), Prefix: "p/"})
	require.NoError(t, err)
	defer closeFn()
	require.NoError(t, s.Set(ctx, "k", "v"))

	_, _, err = Open(ctx, Options{Backend: "redis"})
	assert.Error(t, err)

	_, _, err = Open(ctx, Options{Backend: BackendFile})
	assert.Error(t, err)

	_, _, err = Open(ctx, Options{Backend: BackendPostgres})
	assert.Error(t, err)
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("BLACKJACK_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BLACKJACK_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pg, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer pg.Close()
	require.NoError(t, pg.Migrate(ctx))

	exerciseStore(t, Prefixed(pg, fmt.Sprintf("%s/%d/", t.Name(), time.Now().UnixNano())))
}
