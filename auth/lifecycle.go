package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"evalgo.org/muxsite/internal/storage"
)

// State is the lifecycle state observed by a session check
type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	default:
		return "anonymous"
	}
}

// Denial reasons returned by RequireRole
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
	ErrWrongRole        = errors.New("insufficient role")
)

// EventType names a lifecycle event
type EventType string

const (
	EventLogin       EventType = "login"
	EventLoginFailed EventType = "login_failed"
	EventLogout      EventType = "logout"
	EventExpired     EventType = "session_expired"
	EventDenied      EventType = "access_denied"
	EventRegistered  EventType = "register"
)

// Event describes one lifecycle transition for observers (audit, metrics).
type Event struct {
	Type      EventType
	SubjectID string
	Role      Role
	Method    LoginMethod
	Success   bool
	Reason    string
	At        time.Time
}

// Observer receives lifecycle events. Observers must not block.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

// Manager drives the session lifecycle of one storage scope.
// It is the only component that reads or writes the session record.
type Manager struct {
	sessions  *SessionStore
	directory *UserDirectory
	validator *Validator
	now       func() time.Time
	logger    logrus.FieldLogger
	observers []Observer
	tracer    trace.Tracer
}

// Option configures a Manager
type Option func(*Manager)

// WithClock replaces time.Now, mainly for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithObserver adds a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// WithTracer sets the tracer used for session spans.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// NewManager creates a lifecycle manager over a scoped storage.
func NewManager(store storage.Storage, opts ...Option) *Manager {
	m := &Manager{
		now:    time.Now,
		logger: logrus.StandardLogger(),
		tracer: otel.Tracer("evalgo.org/muxsite/auth"),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.sessions = NewSessionStore(store, m.logger)
	m.directory = NewUserDirectory(store, m.logger)
	m.validator = NewValidator(m.directory, m.now)
	return m
}

// Validator returns the credential validator bound to this scope.
func (m *Manager) Validator() *Validator {
	return m.validator
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Inspect reads the session, erasing it if it has expired, and reports the
// state it found. Storage failures degrade to anonymous.
func (m *Manager) Inspect(ctx context.Context) (State, *Session) {
	ctx, span := m.tracer.Start(ctx, "session.check")
	defer span.End()

	session, err := m.sessions.Load(ctx)
	if err != nil {
		span.RecordError(err)
		m.logger.WithError(err).Error("Session check failed, treating viewer as anonymous")
		return StateAnonymous, nil
	}
	if session == nil {
		span.SetAttributes(attribute.String("session.state", StateAnonymous.String()))
		return StateAnonymous, nil
	}

	if !session.ValidAt(m.now()) {
		if err := m.sessions.Clear(ctx); err != nil {
			span.RecordError(err)
			m.logger.WithError(err).Error("Failed to erase expired session")
		}
		m.logger.WithFields(logrus.Fields{
			"subject":    session.SubjectID,
			"login_time": session.LoginTime,
		}).Info("Session expired")
		m.emit(ctx, Event{Type: EventExpired, SubjectID: session.SubjectID, Role: session.Role, Method: session.LoginMethod})
		span.SetAttributes(attribute.String("session.state", StateExpired.String()))
		return StateExpired, nil
	}

	span.SetAttributes(
		attribute.String("session.state", StateAuthenticated.String()),
		attribute.String("session.role", string(session.Role)),
	)
	return StateAuthenticated, session
}

// CheckAuth returns the current valid session, or nil.
// Every page must use it so expiry cleanup happens consistently.
func (m *Manager) CheckAuth(ctx context.Context) *Session {
	_, session := m.Inspect(ctx)
	return session
}

// RequireRole allows the viewer when a valid session with role exists.
// It returns ErrNotAuthenticated, ErrSessionExpired or ErrWrongRole otherwise.
func (m *Manager) RequireRole(ctx context.Context, role Role) (*Session, error) {
	state, session := m.Inspect(ctx)

	var err error
	switch {
	case state == StateExpired:
		err = ErrSessionExpired
	case session == nil:
		err = ErrNotAuthenticated
	case session.Role != role:
		err = ErrWrongRole
	default:
		return session, nil
	}

	e := Event{Type: EventDenied, Reason: DenialReason(err)}
	if session != nil {
		e.SubjectID = session.SubjectID
		e.Role = session.Role
	}
	m.emit(ctx, e)
	return nil, err
}

// Login validates the credentials and starts a password session.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	ctx, span := m.tracer.Start(ctx, "session.login")
	defer span.End()

	account, err := m.validator.Validate(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			m.emit(ctx, Event{Type: EventLoginFailed, SubjectID: username, Method: LoginMethodPassword})
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return m.Establish(ctx, Identity{
		SubjectID:   account.Username,
		DisplayName: account.Name,
		Email:       account.Email,
		Role:        account.Role,
	}, LoginMethodPassword)
}

// Establish writes a new session for identity, replacing any existing one.
func (m *Manager) Establish(ctx context.Context, identity Identity, method LoginMethod) (*Session, error) {
	ctx, span := m.tracer.Start(ctx, "session.establish")
	defer span.End()

	session := Session{
		SubjectID:   identity.SubjectID,
		Role:        identity.Role,
		DisplayName: identity.DisplayName,
		Email:       identity.Email,
		LoginTime:   m.now(),
		LoginMethod: method,
	}
	if err := m.sessions.Save(ctx, session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to establish session: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"subject": session.SubjectID,
		"role":    session.Role,
		"method":  session.LoginMethod,
	}).Info("Session established")
	m.emit(ctx, Event{Type: EventLogin, SubjectID: session.SubjectID, Role: session.Role, Method: method, Success: true})
	return &session, nil
}

// Logout erases the session whether or not it is still valid.
func (m *Manager) Logout(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "session.logout")
	defer span.End()

	previous, err := m.sessions.Load(ctx)
	if err != nil {
		m.logger.WithError(err).Warn("Could not read session before logout")
	}
	if err := m.sessions.Clear(ctx); err != nil {
		span.RecordError(err)
		return err
	}

	e := Event{Type: EventLogout, Success: true}
	if previous != nil {
		e.SubjectID = previous.SubjectID
		e.Role = previous.Role
	}
	m.emit(ctx, e)
	return nil
}

// Register validates the form and appends the new user to this scope's directory.
func (m *Manager) Register(ctx context.Context, form RegistrationForm) (*RegisteredUser, error) {
	ctx, span := m.tracer.Start(ctx, "session.register")
	defer span.End()

	user, err := m.validator.Register(ctx, form)
	if err != nil {
		reason := ValidationReason(err)
		if reason == "" {
			span.RecordError(err)
		}
		m.emit(ctx, Event{Type: EventRegistered, SubjectID: form.Username, Reason: reason})
		return nil, err
	}

	m.emit(ctx, Event{Type: EventRegistered, SubjectID: form.Username, Role: user.Role, Success: true})
	return user, nil
}

func (m *Manager) emit(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = m.now()
	}
	for _, o := range m.observers {
		o.Observe(ctx, e)
	}
}

// DenialReason maps a RequireRole error to its reason code.
func DenialReason(err error) string {
	switch {
	case errors.Is(err, ErrSessionExpired):
		return "expired"
	case errors.Is(err, ErrWrongRole):
		return "wrong-role"
	case errors.Is(err, ErrNotAuthenticated):
		return "unauthenticated"
	default:
		return ""
	}
}
