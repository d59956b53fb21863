package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"evalgo.org/muxsite/internal/storage"
)

// SessionStore persists the single current-session record of a scope.
type SessionStore struct {
	store  storage.Storage
	logger logrus.FieldLogger
}

// NewSessionStore creates a session store over a scoped storage.
func NewSessionStore(store storage.Storage, logger logrus.FieldLogger) *SessionStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SessionStore{store: store, logger: logger}
}

// Load returns the stored session, or nil when there is none.
// A value that fails to parse is erased and reported as absent.
func (s *SessionStore) Load(ctx context.Context) (*Session, error) {
	raw, ok, err := s.store.GetItem(ctx, SessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		s.logger.WithError(err).Warn("Discarding malformed session record")
		if err := s.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &session, nil
}

// Save overwrites the stored session.
func (s *SessionStore) Save(ctx context.Context, session Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.store.SetItem(ctx, SessionKey, string(data)); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Clear erases the stored session.
func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.store.RemoveItem(ctx, SessionKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// ErrUserExists is returned when adding a username that is already registered
var ErrUserExists = errors.New("user already exists")

// UserDirectory persists registered users of a scope, keyed by lowercase username.
type UserDirectory struct {
	store  storage.Storage
	logger logrus.FieldLogger
}

// NewUserDirectory creates a directory over a scoped storage.
func NewUserDirectory(store storage.Storage, logger logrus.FieldLogger) *UserDirectory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &UserDirectory{store: store, logger: logger}
}

// Load returns all registered users. A malformed directory is erased and
// reported as empty.
func (d *UserDirectory) Load(ctx context.Context) (map[string]RegisteredUser, error) {
	users := make(map[string]RegisteredUser)

	raw, ok, err := d.store.GetItem(ctx, DirectoryKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read user directory: %w", err)
	}
	if !ok {
		return users, nil
	}

	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		d.logger.WithError(err).Warn("Discarding malformed user directory")
		if err := d.store.RemoveItem(ctx, DirectoryKey); err != nil {
			return nil, fmt.Errorf("failed to clear user directory: %w", err)
		}
		return make(map[string]RegisteredUser), nil
	}
	if users == nil {
		users = make(map[string]RegisteredUser)
	}
	return users, nil
}

// Get looks up a registered user by username, case-insensitively.
func (d *UserDirectory) Get(ctx context.Context, username string) (*RegisteredUser, error) {
	users, err := d.Load(ctx)
	if err != nil {
		return nil, err
	}
	user, exists := users[strings.ToLower(username)]
	if !exists {
		return nil, nil
	}
	return &user, nil
}

// Add appends a user. The directory has no edit or delete path.
func (d *UserDirectory) Add(ctx context.Context, username string, user RegisteredUser) error {
	users, err := d.Load(ctx)
	if err != nil {
		return err
	}

	key := strings.ToLower(username)
	if _, exists := users[key]; exists {
		return ErrUserExists
	}
	users[key] = user

	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("failed to marshal user directory: %w", err)
	}
	if err := d.store.SetItem(ctx, DirectoryKey, string(data)); err != nil {
		return fmt.Errorf("failed to write user directory: %w", err)
	}
	return nil
}

// Count returns the number of registered users.
func (d *UserDirectory) Count(ctx context.Context) (int, error) {
	users, err := d.Load(ctx)
	if err != nil {
		return 0, err
	}
	return len(users), nil
}
