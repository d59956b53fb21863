package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionStore_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	s := newTestScope(t)
	store := NewSessionStore(s, nil)

	session, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if session != nil {
		t.Fatalf("Load() = %+v, want nil on empty scope", session)
	}

	want := Session{
		SubjectID:   "admin",
		Role:        RoleAdmin,
		DisplayName: "Admin",
		Email:       "admin@muxeditor.com",
		LoginTime:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		LoginMethod: LoginMethodPassword,
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got == nil || *got != want {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	if _, ok := storedItem(t, s, SessionKey); ok {
		t.Error("Clear() left the session key behind")
	}
}

func TestSessionStore_PersistedLayout(t *testing.T) {
	ctx := context.Background()
	s := newTestScope(t)
	store := NewSessionStore(s, nil)

	err := store.Save(ctx, Session{
		SubjectID:   "discord_user",
		Role:        RoleUser,
		DisplayName: "Discord User",
		Email:       "discord@user.com",
		LoginTime:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		LoginMethod: LoginMethodExternalOAuth,
	})
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	raw, _ := storedItem(t, s, SessionKey)
	want := `{"username":"discord_user","role":"user","name":"Discord User","email":"discord@user.com","loginTime":"2025-01-02T03:04:05Z","loginMethod":"external-oauth"}`
	if raw != want {
		t.Errorf("stored session = %s, want %s", raw, want)
	}
}

func TestSessionStore_MalformedIsAbsentAndCleared(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "Not JSON", raw: "definitely not json"},
		{name: "Wrong shape", raw: `["admin"]`},
		{name: "Bad timestamp", raw: `{"username":"admin","loginTime":"yesterday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestScope(t)
			if err := s.SetItem(ctx, SessionKey, tt.raw); err != nil {
				t.Fatalf("SetItem() failed: %v", err)
			}

			session, err := NewSessionStore(s, nil).Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v, want nil", err)
			}
			if session != nil {
				t.Errorf("Load() = %+v, want nil", session)
			}
			if _, ok := storedItem(t, s, SessionKey); ok {
				t.Error("malformed session was not erased")
			}
		})
	}
}

func TestUserDirectory_AddAndGet(t *testing.T) {
	ctx := context.Background()
	dir := NewUserDirectory(newTestScope(t), nil)

	user := RegisteredUser{
		Name:         "Jane Doe",
		Email:        "jane@example.com",
		Password:     "secret1",
		Role:         RoleUser,
		RegisteredAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := dir.Add(ctx, "Jane_Doe", user); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	for _, name := range []string{"jane_doe", "JANE_DOE", "Jane_Doe"} {
		got, err := dir.Get(ctx, name)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", name, err)
		}
		if got == nil || got.Email != user.Email {
			t.Errorf("Get(%q) = %+v, want %+v", name, got, user)
		}
	}

	users, err := dir.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if _, ok := users["jane_doe"]; !ok {
		t.Errorf("Load() keys = %v, want lowercase key jane_doe", users)
	}

	if err := dir.Add(ctx, "JANE_doe", user); !errors.Is(err, ErrUserExists) {
		t.Errorf("Add() duplicate error = %v, want ErrUserExists", err)
	}

	count, err := dir.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestUserDirectory_MalformedIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestScope(t)
	if err := s.SetItem(ctx, DirectoryKey, "{broken"); err != nil {
		t.Fatalf("SetItem() failed: %v", err)
	}
	dir := NewUserDirectory(s, nil)

	users, err := dir.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if len(users) != 0 {
		t.Errorf("Load() = %v, want empty", users)
	}
	if _, ok := storedItem(t, s, DirectoryKey); ok {
		t.Error("malformed directory was not discarded")
	}

	// The directory is usable again afterwards
	if err := dir.Add(ctx, "newbie", RegisteredUser{Name: "New"}); err != nil {
		t.Fatalf("Add() after discard failed: %v", err)
	}
}
