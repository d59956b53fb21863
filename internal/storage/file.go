package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

const (
	// FileSchemaVersion is written into every scope document
	FileSchemaVersion = "1.0.0"

	lockRetryDelay = 25 * time.Millisecond

	corruptSuffix = ".corrupt"
)

// scopeDocument is the on-disk layout of one scope
type scopeDocument struct {
	Version   string            `json:"version"`
	Items     map[string]string `json:"items"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// FileBackend stores each scope as <dir>/scopes/<id>.json.
type FileBackend struct {
	dataDir string
	mu      sync.Mutex
	logger  logrus.FieldLogger
}

// FileOption configures a FileBackend
type FileOption func(*FileBackend)

// WithFileLogger sets the logger used to report quarantined documents.
func WithFileLogger(logger logrus.FieldLogger) FileOption {
	return func(b *FileBackend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewFileBackend creates a file backend rooted at dataDir.
func NewFileBackend(dataDir string, opts ...FileOption) (*FileBackend, error) {
	if dataDir == "" {
		return nil, errors.New("file storage: data directory is required")
	}

	// Create scopes directory if it doesn't exist
	if err := os.MkdirAll(filepath.Join(dataDir, "scopes"), 0700); err != nil {
		return nil, fmt.Errorf("failed to create scopes directory: %w", err)
	}

	b := &FileBackend{dataDir: dataDir, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Scope returns the namespace for id.
func (b *FileBackend) Scope(id string) (Storage, error) {
	if err := ValidateScope(id); err != nil {
		return nil, err
	}
	return &fileStorage{backend: b, scope: id}, nil
}

// Close is a no-op; every operation opens and closes its own files.
func (b *FileBackend) Close() error {
	return nil
}

func (b *FileBackend) scopePath(id string) string {
	return filepath.Join(b.dataDir, "scopes", id+".json")
}

// withLock runs fn while holding both the process mutex and the scope's file lock
func (b *FileBackend) withLock(ctx context.Context, id string, fn func(path string) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.scopePath(id)
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return errors.New("unable to acquire lock - another process is writing")
	}
	defer func() { _ = lock.Unlock() }()

	return fn(path)
}

func emptyDocument() *scopeDocument {
	return &scopeDocument{
		Version: FileSchemaVersion,
		Items:   make(map[string]string),
	}
}

// load reads the scope document at path. A document that does not parse is
// moved aside to <path>.corrupt and the scope starts empty.
func (b *FileBackend) load(path string) (*scopeDocument, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return emptyDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read scope file: %w", err)
	}

	var doc scopeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		if renameErr := os.Rename(path, path+corruptSuffix); renameErr != nil {
			return nil, fmt.Errorf("failed to quarantine corrupt scope file: %w", renameErr)
		}
		b.logger.WithError(err).WithFields(logrus.Fields{
			"path":       path,
			"quarantine": path + corruptSuffix,
		}).Warn("Scope document is corrupt, starting empty")
		return emptyDocument(), nil
	}
	if doc.Items == nil {
		doc.Items = make(map[string]string)
	}
	return &doc, nil
}

func (b *FileBackend) save(path string, doc *scopeDocument) error {
	doc.Version = FileSchemaVersion
	doc.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scope: %w", err)
	}

	// Write atomically (write to temp, then rename)
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

type fileStorage struct {
	backend *FileBackend
	scope   string
}

func (s *fileStorage) GetItem(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.backend.withLock(ctx, s.scope, func(path string) error {
		doc, err := s.backend.load(path)
		if err != nil {
			return err
		}
		value, ok = doc.Items[key]
		return nil
	})
	return value, ok, err
}

func (s *fileStorage) SetItem(ctx context.Context, key, value string) error {
	return s.backend.withLock(ctx, s.scope, func(path string) error {
		doc, err := s.backend.load(path)
		if err != nil {
			return err
		}
		doc.Items[key] = value
		return s.backend.save(path, doc)
	})
}

func (s *fileStorage) RemoveItem(ctx context.Context, key string) error {
	return s.backend.withLock(ctx, s.scope, func(path string) error {
		doc, err := s.backend.load(path)
		if err != nil {
			return err
		}
		if _, exists := doc.Items[key]; !exists {
			return nil
		}
		delete(doc.Items, key)
		return s.backend.save(path, doc)
	})
}
