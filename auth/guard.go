package auth

import (
	"context"
	"time"

	"evalgo.org/muxsite/internal/notify"
)

// Requirement is what a page demands of its viewer
type Requirement int

const (
	// RequirePublic pages render for everyone
	RequirePublic Requirement = iota
	// RequireAuthenticated pages need any valid session
	RequireAuthenticated
	// RequireAdmin pages need a valid admin session
	RequireAdmin
	// AuthEntry is the login or registration page: authenticated viewers are sent on
	AuthEntry
)

func (r Requirement) String() string {
	switch r {
	case RequireAuthenticated:
		return "authenticated"
	case RequireAdmin:
		return "admin"
	case AuthEntry:
		return "auth-entry"
	default:
		return "public"
	}
}

// Viewer-facing messages for each guard condition
const (
	MessageNotAuthenticated = "Please log in to continue."
	MessageSessionExpired   = "Your session has expired. Please log in again."
	MessageWrongRole        = "You do not have permission to access this page."
	MessageWelcomeBack      = "You are already logged in. Redirecting..."
)

// Pages are the fixed redirect targets.
type Pages struct {
	Login         string        `mapstructure:"login"`
	Register      string        `mapstructure:"register"`
	Landing       string        `mapstructure:"landing"`
	Admin         string        `mapstructure:"admin"`
	Logout        string        `mapstructure:"logout"`
	RedirectDelay time.Duration `mapstructure:"redirect_delay"`
}

// DefaultPages returns the site's standard layout.
func DefaultPages() Pages {
	return Pages{
		Login:         "/auth/login",
		Register:      "/auth/register",
		Landing:       "/mainmenu",
		Admin:         "/admin",
		Logout:        "/auth/logout",
		RedirectDelay: 1500 * time.Millisecond,
	}
}

// LandingFor returns the post-login page for role.
func (p Pages) LandingFor(role Role) string {
	if role == RoleAdmin {
		return p.Admin
	}
	return p.Landing
}

// Decision is the outcome of a page guard evaluation.
// When Allow is false the viewer is sent to Redirect after Delay, with Notice shown.
type Decision struct {
	Allow    bool
	Session  *Session
	Redirect string
	Notice   *notify.Notice
	Delay    time.Duration
	Reason   string
}

// Guard runs the per-page authentication check.
type Guard struct {
	manager *Manager
	pages   Pages
}

// NewGuard creates a guard over a lifecycle manager.
func NewGuard(manager *Manager, pages Pages) *Guard {
	return &Guard{manager: manager, pages: pages}
}

// Pages returns the guard's redirect targets.
func (g *Guard) Pages() Pages {
	return g.pages
}

// Evaluate decides whether the viewer may see a page with requirement req.
func (g *Guard) Evaluate(ctx context.Context, req Requirement) Decision {
	switch req {
	case RequireAuthenticated:
		state, session := g.manager.Inspect(ctx)
		switch state {
		case StateAuthenticated:
			return Decision{Allow: true, Session: session}
		case StateExpired:
			return g.deny(ErrSessionExpired)
		default:
			return g.deny(ErrNotAuthenticated)
		}

	case RequireAdmin:
		session, err := g.manager.RequireRole(ctx, RoleAdmin)
		if err != nil {
			return g.deny(err)
		}
		return Decision{Allow: true, Session: session}

	case AuthEntry:
		session := g.manager.CheckAuth(ctx)
		if session == nil {
			return Decision{Allow: true}
		}
		n := notify.Info(MessageWelcomeBack)
		return Decision{
			Session:  session,
			Redirect: g.pages.LandingFor(session.Role),
			Notice:   &n,
			Delay:    g.pages.RedirectDelay,
			Reason:   "authenticated",
		}

	default:
		return Decision{Allow: true, Session: g.manager.CheckAuth(ctx)}
	}
}

func (g *Guard) deny(err error) Decision {
	return Decision{
		Redirect: g.pages.Login,
		Notice:   DenialNotice(err),
		Reason:   DenialReason(err),
	}
}

// DenialNotice maps a denial error to the banner shown on the login page.
func DenialNotice(err error) *notify.Notice {
	var n notify.Notice
	switch DenialReason(err) {
	case "expired":
		n = notify.Warning(MessageSessionExpired)
	case "wrong-role":
		n = notify.Error(MessageWrongRole)
	default:
		n = notify.Warning(MessageNotAuthenticated)
	}
	return &n
}
