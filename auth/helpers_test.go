package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"evalgo.org/muxsite/internal/storage"
)

// fakeClock is a manually advanced clock for expiry tests
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingObserver collects lifecycle events
type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (o *recordingObserver) Observe(_ context.Context, e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *recordingObserver) types() []EventType {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]EventType, len(o.events))
	for i, e := range o.events {
		out[i] = e.Type
	}
	return out
}

func newTestScope(t *testing.T) storage.Storage {
	t.Helper()
	s, err := storage.NewMemoryBackend().Scope("test")
	if err != nil {
		t.Fatalf("Scope() failed: %v", err)
	}
	return s
}

func storedItem(t *testing.T, s storage.Storage, key string) (string, bool) {
	t.Helper()
	value, ok, err := s.GetItem(context.Background(), key)
	if err != nil {
		t.Fatalf("GetItem(%q) failed: %v", key, err)
	}
	return value, ok
}
