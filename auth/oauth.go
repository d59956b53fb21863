package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Defaults of the Discord login stub
const (
	DefaultOAuthClientID     = "1423310486581018764"
	DefaultOAuthScope        = "identify email"
	DefaultOAuthCallbackPath = "/auth/login"
	DefaultOAuthDelay        = 2 * time.Second

	discordAuthorizeEndpoint = "https://discord.com/api/oauth2/authorize"
)

// ErrMissingCode is returned when an exchange is attempted without a code
var ErrMissingCode = errors.New("authorization code is required")

// IdentityProvider is an external login provider using the authorization code flow.
type IdentityProvider interface {
	// AuthorizationURL builds the provider URL the viewer is sent to.
	// origin is scheme://host of the page starting the flow.
	AuthorizationURL(origin string) string
	// Exchange completes the flow for code and returns the vouched identity.
	Exchange(ctx context.Context, code string) (Identity, error)
}

// StubProvider imitates Discord login without any network traffic.
// Every exchange resolves to the same fixed identity after Delay.
type StubProvider struct {
	ClientID     string
	Scope        string
	CallbackPath string
	Delay        time.Duration
}

// NewStubProvider creates a stub with the default client id, scope and callback.
func NewStubProvider(delay time.Duration) *StubProvider {
	return &StubProvider{
		ClientID:     DefaultOAuthClientID,
		Scope:        DefaultOAuthScope,
		CallbackPath: DefaultOAuthCallbackPath,
		Delay:        delay,
	}
}

// AuthorizationURL builds the Discord authorize URL for the given origin.
func (p *StubProvider) AuthorizationURL(origin string) string {
	redirectURI := strings.TrimRight(origin, "/") + p.CallbackPath
	return fmt.Sprintf("%s?client_id=%s&redirect_uri=%s&response_type=code&scope=%s",
		discordAuthorizeEndpoint,
		url.QueryEscape(p.ClientID),
		url.QueryEscape(redirectURI),
		url.PathEscape(p.Scope),
	)
}

// Exchange waits for the artificial delay and returns the placeholder identity.
func (p *StubProvider) Exchange(ctx context.Context, code string) (Identity, error) {
	if code == "" {
		return Identity{}, ErrMissingCode
	}

	if p.Delay > 0 {
		timer := time.NewTimer(p.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return Identity{}, ctx.Err()
		}
	}

	return Identity{
		SubjectID:   "discord_user",
		DisplayName: "Discord User",
		Email:       "discord@user.com",
		Role:        RoleUser,
	}, nil
}

// OAuthFlow feeds provider callbacks into a lifecycle manager.
type OAuthFlow struct {
	provider IdentityProvider
	manager  *Manager
}

// NewOAuthFlow binds a provider to a manager.
func NewOAuthFlow(provider IdentityProvider, manager *Manager) *OAuthFlow {
	return &OAuthFlow{provider: provider, manager: manager}
}

// AuthorizationURL delegates to the provider.
func (f *OAuthFlow) AuthorizationURL(origin string) string {
	return f.provider.AuthorizationURL(origin)
}

// HandleCallback completes the login when current carries a "code" query
// parameter. It returns the new session (nil when there was no code) and
// current with the code parameter removed.
func (f *OAuthFlow) HandleCallback(ctx context.Context, current *url.URL) (*Session, *url.URL, error) {
	query := current.Query()
	code := query.Get("code")
	if code == "" {
		return nil, current, nil
	}

	cleaned := *current
	query.Del("code")
	cleaned.RawQuery = query.Encode()

	identity, err := f.provider.Exchange(ctx, code)
	if err != nil {
		return nil, &cleaned, fmt.Errorf("external login failed: %w", err)
	}

	session, err := f.manager.Establish(ctx, identity, LoginMethodExternalOAuth)
	if err != nil {
		return nil, &cleaned, err
	}
	return session, &cleaned, nil
}
