package auth

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestStubProvider_AuthorizationURL(t *testing.T) {
	p := NewStubProvider(0)

	got := p.AuthorizationURL("http://localhost:8080/")
	want := "https://discord.com/api/oauth2/authorize?client_id=1423310486581018764" +
		"&redirect_uri=http%3A%2F%2Flocalhost%3A8080%2Fauth%2Flogin" +
		"&response_type=code&scope=identify%20email"
	if got != want {
		t.Errorf("AuthorizationURL() =\n%s\nwant\n%s", got, want)
	}

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("url.Parse() failed: %v", err)
	}
	if u.Query().Get("scope") != "identify email" {
		t.Errorf("scope = %q", u.Query().Get("scope"))
	}
}

func TestStubProvider_Exchange(t *testing.T) {
	p := NewStubProvider(0)

	if _, err := p.Exchange(context.Background(), ""); !errors.Is(err, ErrMissingCode) {
		t.Errorf("Exchange(\"\") error = %v, want ErrMissingCode", err)
	}

	// Any code resolves to the same placeholder identity
	for _, code := range []string{"abc", "anything-at-all"} {
		id, err := p.Exchange(context.Background(), code)
		if err != nil {
			t.Fatalf("Exchange(%q) failed: %v", code, err)
		}
		want := Identity{SubjectID: "discord_user", DisplayName: "Discord User", Email: "discord@user.com", Role: RoleUser}
		if id != want {
			t.Errorf("Exchange(%q) = %+v, want %+v", code, id, want)
		}
	}
}

func TestStubProvider_ExchangeHonoursContext(t *testing.T) {
	p := NewStubProvider(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Exchange(ctx, "abc"); !errors.Is(err, context.Canceled) {
		t.Errorf("Exchange() error = %v, want context.Canceled", err)
	}
}

func TestOAuthFlow_HandleCallback(t *testing.T) {
	tests := []struct {
		name        string
		rawURL      string
		wantSession bool
		wantURL     string
	}{
		{name: "No code", rawURL: "http://localhost/auth/login", wantURL: "http://localhost/auth/login"},
		{name: "Code only", rawURL: "http://localhost/auth/login?code=abc", wantSession: true, wantURL: "http://localhost/auth/login"},
		{name: "Code with other params", rawURL: "http://localhost/auth/login?code=abc&next=%2Fmainmenu", wantSession: true, wantURL: "http://localhost/auth/login?next=%2Fmainmenu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m, _, _, _ := newTestManager(t)
			flow := NewOAuthFlow(NewStubProvider(0), m)

			current, err := url.Parse(tt.rawURL)
			if err != nil {
				t.Fatalf("url.Parse() failed: %v", err)
			}
			session, cleaned, err := flow.HandleCallback(ctx, current)
			if err != nil {
				t.Fatalf("HandleCallback() failed: %v", err)
			}
			if cleaned.String() != tt.wantURL {
				t.Errorf("cleaned URL = %q, want %q", cleaned.String(), tt.wantURL)
			}
			if (session != nil) != tt.wantSession {
				t.Fatalf("session = %+v, want present=%v", session, tt.wantSession)
			}
			if !tt.wantSession {
				return
			}
			if session.SubjectID != "discord_user" || session.LoginMethod != LoginMethodExternalOAuth {
				t.Errorf("session = %+v", session)
			}
			if m.CheckAuth(ctx) == nil {
				t.Error("CheckAuth() = nil after callback")
			}
		})
	}
}

type failingProvider struct{}

func (failingProvider) AuthorizationURL(string) string { return "" }

func (failingProvider) Exchange(context.Context, string) (Identity, error) {
	return Identity{}, errors.New("provider unavailable")
}

func TestOAuthFlow_ExchangeFailureKeepsAnonymous(t *testing.T) {
	ctx := context.Background()
	m, _, _, _ := newTestManager(t)
	flow := NewOAuthFlow(failingProvider{}, m)

	current, _ := url.Parse("http://localhost/auth/login?code=abc")
	session, cleaned, err := flow.HandleCallback(ctx, current)
	if err == nil {
		t.Fatal("HandleCallback() error = nil, want failure")
	}
	if session != nil {
		t.Errorf("session = %+v, want nil", session)
	}
	if cleaned.RawQuery != "" {
		t.Errorf("cleaned query = %q, want empty", cleaned.RawQuery)
	}
	if m.CheckAuth(ctx) != nil {
		t.Error("CheckAuth() returned a session after failed exchange")
	}
}
