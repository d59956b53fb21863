package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backendsUnderTest(t *testing.T) map[string]Backend {
	t.Helper()

	backends := map[string]Backend{
		DriverMemory: NewMemoryBackend(),
	}

	fileBackend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	backends[DriverFile] = fileBackend

	badgerBackend, err := NewBadgerBackend(t.TempDir())
	require.NoError(t, err)
	backends[DriverBadger] = badgerBackend

	sqliteBackend, err := NewSQLiteBackend(t.TempDir())
	require.NoError(t, err)
	backends[DriverSQLite] = sqliteBackend

	if addr := os.Getenv("MUXSITE_TEST_REDIS_ADDR"); addr != "" {
		redisBackend, err := NewRedisBackend(addr, "", 0)
		require.NoError(t, err)
		backends[DriverRedis] = redisBackend
	}

	t.Cleanup(func() {
		for _, b := range backends {
			_ = b.Close()
		}
	})
	return backends
}

func TestBackends_ItemLifecycle(t *testing.T) {
	ctx := context.Background()

	for name, backend := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			s, err := backend.Scope("browser-a")
			require.NoError(t, err)

			_, ok, err := s.GetItem(ctx, "muxAuth")
			require.NoError(t, err)
			assert.False(t, ok, "missing key must report ok=false")

			require.NoError(t, s.SetItem(ctx, "muxAuth", `{"username":"admin"}`))
			value, ok, err := s.GetItem(ctx, "muxAuth")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `{"username":"admin"}`, value)

			require.NoError(t, s.SetItem(ctx, "muxAuth", `{"username":"user"}`))
			value, _, err = s.GetItem(ctx, "muxAuth")
			require.NoError(t, err)
			assert.Equal(t, `{"username":"user"}`, value, "last write wins")

			require.NoError(t, s.RemoveItem(ctx, "muxAuth"))
			_, ok, err = s.GetItem(ctx, "muxAuth")
			require.NoError(t, err)
			assert.False(t, ok)

			// Removing a missing key is not an error
			require.NoError(t, s.RemoveItem(ctx, "muxAuth"))
		})
	}
}

func TestBackends_ScopesAreIsolated(t *testing.T) {
	ctx := context.Background()

	for name, backend := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			a, err := backend.Scope("scope-a")
			require.NoError(t, err)
			b, err := backend.Scope("scope-b")
			require.NoError(t, err)

			require.NoError(t, a.SetItem(ctx, "muxUsers", "{}"))

			_, ok, err := b.GetItem(ctx, "muxUsers")
			require.NoError(t, err)
			assert.False(t, ok, "scope-b must not see scope-a items")
		})
	}
}

func TestBackends_RejectInvalidScope(t *testing.T) {
	for name, backend := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"", "../etc", "a/b", "with space"} {
				_, err := backend.Scope(id)
				assert.ErrorIs(t, err, ErrInvalidScope, "scope %q", id)
			}
		})
	}
}

func TestFileBackend_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewFileBackend(dir)
	require.NoError(t, err)
	s, err := first.Scope("cli")
	require.NoError(t, err)
	require.NoError(t, s.SetItem(ctx, "muxAuth", "value"))

	// A fresh backend over the same directory sees the item
	second, err := NewFileBackend(dir)
	require.NoError(t, err)
	s2, err := second.Scope("cli")
	require.NoError(t, err)
	value, ok, err := s2.GetItem(ctx, "muxAuth")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", value)

	_, err = os.Stat(filepath.Join(dir, "scopes", "cli.json"))
	assert.NoError(t, err)
}

func TestFileBackend_CorruptDocumentIsQuarantined(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	logger, hook := test.NewNullLogger()
	backend, err := NewFileBackend(dir, WithFileLogger(logger))
	require.NoError(t, err)
	path := filepath.Join(dir, "scopes", "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := backend.Scope("broken")
	require.NoError(t, err)
	_, ok, err := s.GetItem(ctx, "muxAuth")
	require.NoError(t, err)
	assert.False(t, ok, "a corrupt scope reads as empty")

	quarantined, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(quarantined))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	// The scope is usable again
	require.NoError(t, s.SetItem(ctx, "muxAuth", "value"))
	value, ok, err := s.GetItem(ctx, "muxAuth")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", value)
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default is memory", cfg: Config{}},
		{name: "memory", cfg: Config{Driver: DriverMemory}},
		{name: "file", cfg: Config{Driver: DriverFile, Path: t.TempDir()}},
		{name: "file without path", cfg: Config{Driver: DriverFile}, wantErr: true},
		{name: "sqlite", cfg: Config{Driver: DriverSQLite, Path: t.TempDir()}},
		{name: "redis without address", cfg: Config{Driver: DriverRedis}, wantErr: true},
		{name: "unknown driver", cfg: Config{Driver: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := Open(tt.cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, backend.Close())
		})
	}
}
