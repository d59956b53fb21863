package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"evalgo.org/muxsite/auth"
	"evalgo.org/muxsite/internal/catalog"
	"evalgo.org/muxsite/internal/metrics"
	"evalgo.org/muxsite/internal/notify"
	"evalgo.org/muxsite/internal/storage"
)

// App holds the process-wide services shared by every scope.
type App struct {
	cfg      Config
	logger   logrus.FieldLogger
	backend  storage.Backend
	audit    *auth.AuditLogger
	metrics  *metrics.Metrics
	provider auth.IdentityProvider
	now      func() time.Time
}

// ScopeServices are the per-browser services bound to one storage scope.
type ScopeServices struct {
	ID      string
	Store   storage.Storage
	Manager *auth.Manager
	Guard   *auth.Guard
	OAuth   *auth.OAuthFlow
	Flash   *notify.Flash
	Sales   *catalog.SalesLedger
	Files   *catalog.PackageFiles
}

// InitializeApp opens the storage backend and the audit trail.
func InitializeApp(cfg Config, logger logrus.FieldLogger) (*App, error) {
	if cfg.Auth.Secret == "" {
		cfg.Auth.Secret = generateSecret()
		logger.Warn("auth.secret not set, using a random secret: scope cookies will not survive a restart")
	}

	backend, err := storage.Open(cfg.Storage, logger.WithField("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Driver, err)
	}

	audit, err := auth.NewAuditLogger(cfg.Audit.Dir, logger.WithField("component", "audit"))
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to initialize audit log: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"driver": cfg.Storage.Driver,
		"path":   cfg.Storage.Path,
		"audit":  cfg.Audit.Dir,
	}).Info("Session storage initialized")

	return &App{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		audit:    audit,
		metrics:  metrics.New("muxsite"),
		provider: cfg.stubProvider(),
		now:      time.Now,
	}, nil
}

// Scope binds the session services to scope id.
func (a *App) Scope(id string) (*ScopeServices, error) {
	store, err := a.backend.Scope(id)
	if err != nil {
		return nil, err
	}

	manager := auth.NewManager(store,
		auth.WithClock(a.now),
		auth.WithLogger(a.logger.WithField("scope", id)),
		auth.WithObserver(a.audit),
		auth.WithObserver(a.metrics),
	)

	return &ScopeServices{
		ID:      id,
		Store:   store,
		Manager: manager,
		Guard:   auth.NewGuard(manager, a.cfg.Pages),
		OAuth:   auth.NewOAuthFlow(a.provider, manager),
		Flash:   notify.NewFlash(store),
		Sales:   catalog.NewSalesLedger(store, a.logger),
		Files:   catalog.NewPackageFiles(store, a.logger),
	}, nil
}

// Close releases the storage backend.
func (a *App) Close() error {
	return a.backend.Close()
}

// generateSecret returns a random signing secret
func generateSecret() string {
	b := make([]byte, 48)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate secret")
	}
	return base64.StdEncoding.EncodeToString(b)
}
