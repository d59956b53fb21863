// Package storage provides scoped string key-value namespaces.
//
// A Storage behaves like a browser's localStorage: flat string keys, string
// values, last write wins. A Backend hands out one isolated Storage per scope
// id, so every browser (or CLI profile) sees only its own keys.
//
// Backends:
//   - memory: process-local maps, lost on restart
//   - file:   one JSON document per scope, guarded by a file lock
//   - badger: embedded BadgerDB
//   - redis:  one hash per scope
//   - sqlite: a single items table keyed by (scope, key)
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// Supported drivers
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverBadger = "badger"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

var (
	// ErrInvalidScope is returned for scope ids that cannot be used as a namespace
	ErrInvalidScope = errors.New("storage: invalid scope id")
	// ErrClosed is returned by backends used after Close
	ErrClosed = errors.New("storage: backend closed")

	validScope = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
)

// Storage is a flat string key-value namespace.
// GetItem reports ok=false for missing keys; that is not an error.
type Storage interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Backend hands out isolated Storage namespaces.
type Backend interface {
	Scope(id string) (Storage, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver        string `mapstructure:"driver"`
	Path          string `mapstructure:"path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// Open creates the backend named by cfg.Driver.
func Open(cfg Config, logger logrus.FieldLogger) (Backend, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverMemory:
		return NewMemoryBackend(), nil
	case DriverFile:
		return NewFileBackend(cfg.Path, WithFileLogger(logger))
	case DriverBadger:
		return NewBadgerBackend(cfg.Path)
	case DriverRedis:
		return NewRedisBackend(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case DriverSQLite:
		return NewSQLiteBackend(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// ValidateScope checks that id is usable as a namespace on every backend.
func ValidateScope(id string) error {
	if !validScope.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidScope, id)
	}
	return nil
}
