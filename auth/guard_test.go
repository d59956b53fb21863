package auth

import (
	"context"
	"testing"
	"time"

	"evalgo.org/muxsite/internal/notify"
)

func TestGuard_Evaluate(t *testing.T) {
	pages := DefaultPages()

	tests := []struct {
		name         string
		login        string
		password     string
		advance      time.Duration
		req          Requirement
		wantAllow    bool
		wantRedirect string
		wantReason   string
		wantKind     notify.Kind
		wantText     string
	}{
		{name: "Public anonymous", req: RequirePublic, wantAllow: true},
		{name: "Public admin", login: "admin", password: "admin123", req: RequirePublic, wantAllow: true},
		{
			name: "Protected anonymous", req: RequireAuthenticated,
			wantRedirect: pages.Login, wantReason: "unauthenticated", wantKind: notify.KindWarning, wantText: MessageNotAuthenticated,
		},
		{name: "Protected user", login: "user", password: "user123", req: RequireAuthenticated, wantAllow: true},
		{
			name: "Protected expired", login: "user", password: "user123", advance: 30 * time.Hour, req: RequireAuthenticated,
			wantRedirect: pages.Login, wantReason: "expired", wantKind: notify.KindWarning, wantText: MessageSessionExpired,
		},
		{name: "Admin page admin", login: "admin", password: "admin123", req: RequireAdmin, wantAllow: true},
		{
			name: "Admin page user", login: "user", password: "user123", req: RequireAdmin,
			wantRedirect: pages.Login, wantReason: "wrong-role", wantKind: notify.KindError, wantText: MessageWrongRole,
		},
		{
			name: "Admin page anonymous", req: RequireAdmin,
			wantRedirect: pages.Login, wantReason: "unauthenticated", wantKind: notify.KindWarning, wantText: MessageNotAuthenticated,
		},
		{name: "Login page anonymous", req: AuthEntry, wantAllow: true},
		{
			name: "Login page admin", login: "admin", password: "admin123", req: AuthEntry,
			wantRedirect: pages.Admin, wantReason: "authenticated", wantKind: notify.KindInfo, wantText: MessageWelcomeBack,
		},
		{
			name: "Login page user", login: "user", password: "user123", req: AuthEntry,
			wantRedirect: pages.Landing, wantReason: "authenticated", wantKind: notify.KindInfo, wantText: MessageWelcomeBack,
		},
		{name: "Login page expired", login: "user", password: "user123", advance: 30 * time.Hour, req: AuthEntry, wantAllow: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m, _, clock, _ := newTestManager(t)
			if tt.login != "" {
				if _, err := m.Login(ctx, tt.login, tt.password); err != nil {
					t.Fatalf("Login() failed: %v", err)
				}
			}
			clock.Advance(tt.advance)

			d := NewGuard(m, pages).Evaluate(ctx, tt.req)
			if d.Allow != tt.wantAllow {
				t.Fatalf("Evaluate() allow = %v, want %v (%+v)", d.Allow, tt.wantAllow, d)
			}
			if tt.wantAllow {
				if d.Redirect != "" || d.Notice != nil {
					t.Errorf("allowed decision carries redirect %q notice %+v", d.Redirect, d.Notice)
				}
				return
			}
			if d.Redirect != tt.wantRedirect {
				t.Errorf("Redirect = %q, want %q", d.Redirect, tt.wantRedirect)
			}
			if d.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.wantReason)
			}
			if d.Notice == nil {
				t.Fatal("Notice = nil")
			}
			if d.Notice.Kind != tt.wantKind || d.Notice.Text != tt.wantText {
				t.Errorf("Notice = %+v, want %s %q", d.Notice, tt.wantKind, tt.wantText)
			}
		})
	}
}

func TestGuard_AuthEntryUsesRedirectDelay(t *testing.T) {
	ctx := context.Background()
	m, _, _, _ := newTestManager(t)
	if _, err := m.Login(ctx, "admin", "admin123"); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}

	pages := DefaultPages()
	pages.RedirectDelay = 2 * time.Second
	d := NewGuard(m, pages).Evaluate(ctx, AuthEntry)
	if d.Delay != 2*time.Second {
		t.Errorf("Delay = %v, want 2s", d.Delay)
	}
	if d.Session == nil || d.Session.SubjectID != "admin" {
		t.Errorf("Session = %+v", d.Session)
	}
}

func TestPages_LandingFor(t *testing.T) {
	pages := DefaultPages()
	if got := pages.LandingFor(RoleAdmin); got != "/admin" {
		t.Errorf("LandingFor(admin) = %q", got)
	}
	if got := pages.LandingFor(RoleUser); got != "/mainmenu" {
		t.Errorf("LandingFor(user) = %q", got)
	}
}
