package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/muxsite/auth"
	"evalgo.org/muxsite/internal/metrics"
	"evalgo.org/muxsite/internal/storage"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestServer builds the full route table over a memory backend
func newTestServer(t *testing.T) (*echo.Echo, *testClock) {
	t.Helper()
	return newTestServerWithPages(t, auth.DefaultPages())
}

func newTestServerWithPages(t *testing.T, pages auth.Pages) (*echo.Echo, *testClock) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	clock := &testClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	audit, err := auth.NewAuditLogger(t.TempDir(), logger, auth.WithAuditClock(clock.Now))
	require.NoError(t, err)

	cfg := Config{
		Server: ServerConfig{Port: 8080, PublicURL: "http://localhost:8080"},
		Auth:   AuthConfig{Secret: "test-secret"},
		Pages:  pages,
		Audit:  AuditConfig{RetentionDays: 30, CompressAfter: 7, RotateSchedule: "@daily"},
	}
	app := &App{
		cfg:      cfg,
		logger:   logger,
		backend:  storage.NewMemoryBackend(),
		audit:    audit,
		metrics:  metrics.New("muxsite_test"),
		provider: cfg.stubProvider(),
		now:      clock.Now,
	}
	t.Cleanup(func() { _ = app.Close() })
	return app.NewServer(), clock
}

// browser replays cookies between requests like a real browser would
type browser struct {
	t       *testing.T
	e       *echo.Echo
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, e *echo.Echo) *browser {
	return &browser{t: t, e: e, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	b.t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.e.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, target, nil, "")
}

func (b *browser) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	return b.do(http.MethodPost, target, strings.NewReader(form.Encode()), echo.MIMEApplicationForm)
}

func (b *browser) postJSON(target string, body any) *httptest.ResponseRecorder {
	data, err := json.Marshal(body)
	require.NoError(b.t, err)
	return b.do(http.MethodPost, target, bytes.NewReader(data), echo.MIMEApplicationJSON)
}

func (b *browser) login(username, password string) {
	b.t.Helper()
	rec := b.postForm("/auth/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(b.t, http.StatusOK, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t)
	rec := newBrowser(t, e).get("/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestScopeCookie(t *testing.T) {
	e, _ := newTestServer(t)
	b := newBrowser(t, e)

	rec := b.get("/auth/login")
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, scopeCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	rec = b.get("/auth/login")
	assert.Empty(t, rec.Result().Cookies(), "a valid cookie is kept")

	b.cookies[scopeCookieName].Value += "x"
	rec = b.get("/auth/login")
	assert.Len(t, rec.Result().Cookies(), 1, "a tampered cookie is replaced")
}

func TestScopesAreIsolated(t *testing.T) {
	e, _ := newTestServer(t)
	alice := newBrowser(t, e)
	bob := newBrowser(t, e)

	alice.login("admin", "admin123")

	resp := decode[SessionResponse](t, alice.get("/api/session"))
	assert.Equal(t, "authenticated", resp.State)

	resp = decode[SessionResponse](t, bob.get("/api/session"))
	assert.Equal(t, "anonymous", resp.State)
	assert.Nil(t, resp.Session)
}

func TestLoginPage(t *testing.T) {
	e, _ := newTestServer(t)
	b := newBrowser(t, e)

	rec := b.get("/auth/login")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "discord.com/api/oauth2/authorize")

	rec = b.get("/auth/login?demo=user")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="user123"`)
	assert.Contains(t, rec.Body.String(), "Demo user credentials filled in.")
}

func TestLoginForm(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantCode int
		wantBody string
	}{
		{name: "admin lands on admin panel", username: "admin", password: "admin123", wantCode: http.StatusOK, wantBody: "url=/admin"},
		{name: "user lands on main menu", username: "user", password: "user123", wantCode: http.StatusOK, wantBody: "url=/mainmenu"},
		{name: "wrong password", username: "admin", password: "nope", wantCode: http.StatusUnauthorized, wantBody: msgInvalidCredentials},
		{name: "missing password", username: "admin", wantCode: http.StatusBadRequest, wantBody: msgMissingCredentials},
		{name: "blank username", username: "   ", password: "admin123", wantCode: http.StatusBadRequest, wantBody: msgMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestServer(t)
			rec := newBrowser(t, e).postForm("/auth/login", url.Values{"username": {tt.username}, "password": {tt.password}})
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestAuthenticatedViewerIsSentOnFromLogin(t *testing.T) {
	e, _ := newTestServer(t)
	b := newBrowser(t, e)
	b.login("admin", "admin123")

	rec := b.get("/auth/login")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `content="1.5;url=/admin"`)
	assert.Contains(t, rec.Body.String(), auth.MessageWelcomeBack)

	rec = b.get("/auth/register")
	assert.Contains(t, rec.Body.String(), `content="1.5;url=/admin"`)
}

func TestGuards(t *testing.T) {
	e, _ := newTestServer(t)

	t.Run("anonymous viewer is sent to login", func(t *testing.T) {
		b := newBrowser(t, e)
		rec := b.get("/admin")
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/auth/login", rec.Header().Get(echo.HeaderLocation))

		rec = b.get("/auth/login")
		assert.Contains(t, rec.Body.String(), auth.MessageNotAuthenticated)

		rec = b.get("/auth/login")
		assert.NotContains(t, rec.Body.String(), auth.MessageNotAuthenticated, "the notice is shown once")
	})

	t.Run("user is refused the admin panel", func(t *testing.T) {
		b := newBrowser(t, e)
		b.login("user", "user123")

		rec := b.get("/admin")
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/auth/login", rec.Header().Get(echo.HeaderLocation))

		rec = b.get("/mainmenu")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), auth.MessageWrongRole)
	})

	t.Run("admin panel routes are guarded", func(t *testing.T) {
		b := newBrowser(t, e)
		rec := b.postForm("/admin/sales/clear", url.Values{})
		assert.Equal(t, http.StatusFound, rec.Code)
	})

	t.Run("home redirects by role", func(t *testing.T) {
		b := newBrowser(t, e)
		assert.Equal(t, "/auth/login", b.get("/").Header().Get(echo.HeaderLocation))
		b.login("admin", "admin123")
		assert.Equal(t, "/admin", b.get("/").Header().Get(echo.HeaderLocation))
	})
}

func TestSessionExpiry(t *testing.T) {
	e, clock := newTestServer(t)
	b := newBrowser(t, e)
	b.login("user", "user123")

	clock.Advance(23 * time.Hour)
	require.Equal(t, http.StatusOK, b.get("/mainmenu").Code)

	clock.Advance(2 * time.Hour)
	rec := b.get("/mainmenu")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get(echo.HeaderLocation))

	rec = b.get("/auth/login")
	assert.Contains(t, rec.Body.String(), auth.MessageSessionExpired)

	resp := decode[SessionResponse](t, b.get("/api/session"))
	assert.Equal(t, "anonymous", resp.State, "the expired session was erased")
}

func TestLogout(t *testing.T) {
	e, _ := newTestServer(t)
	b := newBrowser(t, e)
	b.login("admin", "admin123")

	rec := b.get("/auth/logout")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get(echo.HeaderLocation))

	rec = b.get("/auth/login")
	assert.Contains(t, rec.Body.String(), msgLoggedOut)
	assert.Equal(t, http.StatusFound, b.get("/admin").Code)
}

func TestRegisterForm(t *testing.T) {
	e, _ := newTestServer(t)
	b := newBrowser(t, e)

	form := url.Values{
		"fullname":        {"Jane Doe"},
		"email":           {"jane@example.com"},
		"username":        {"jane_doe"},
		"password":        {"Secret1!"},
		"confirmPassword": {"Secret1!"},
		"terms":           {"on"},
	}

	bad := url.Values{}
	for k, v := range form {
		bad[k] = v
	}
	bad.Set("confirmPassword", "other")
	rec := b.postForm("/auth/register", bad)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Passwords do not match.")
	assert.Contains(t, rec.Body.String(), `value="jane@example.com"`, "the form keeps its values")

	rec = b.postForm("/auth/register", form)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get(echo.HeaderLocation))
	assert.Contains(t, b.get("/auth/login").Body.String(), msgRegistered)

	rec = b.postForm("/auth/register", form)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "This username is already taken.")

	rec = b.postForm("/auth/login", url.Values{"username": {"Jane_Doe"}, "password": {"Secret1!"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "url=/mainmenu")
}

func TestDiscordFlow(t *testing.T) {
	e, _ := newTestServer(t)
	b := newBrowser(t, e)

	rec := b.get("/auth/discord")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderLocation), "client_id="+auth.DefaultOAuthClientID)

	urlResp := decode[map[string]string](t, b.get("/api/oauth/url"))
	assert.Contains(t, urlResp["url"], "response_type=code")
	assert.Contains(t, urlResp["url"], "client_id="+auth.DefaultOAuthClientID)

	rec = b.get("/auth/login?code=abc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), msgDiscordSuccess)
	assert.Contains(t, rec.Body.String(), "url=/mainmenu")

	resp := decode[SessionResponse](t, b.get("/api/session"))
	require.NotNil(t, resp.Session)
	assert.Equal(t, "discord_user", resp.Session.SubjectID)
	assert.Equal(t, auth.LoginMethodExternalOAuth, resp.Session.LoginMethod)

	rec = b.get("/auth/register/discord")
	assert.Contains(t, rec.Body.String(), msgDiscordRegister)
}

func TestAPISessionLifecycle(t *testing.T) {
	e, _ := newTestServer(t)
	b := newBrowser(t, e)

	rec := b.postJSON("/api/login", LoginRequest{Username: "admin", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid-credentials", decode[ErrorResponse](t, rec).Reason)

	rec = b.postJSON("/api/login", LoginRequest{Username: "admin", Password: "admin123"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SessionResponse](t, rec)
	assert.Equal(t, "authenticated", resp.State)
	assert.Equal(t, "/admin", resp.Redirect)
	require.NotNil(t, resp.ExpiresAt)
	assert.Equal(t, resp.Session.LoginTime.Add(auth.SessionLifetime), *resp.ExpiresAt)

	rec = b.postJSON("/api/logout", struct{}{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", decode[SessionResponse](t, b.get("/api/session")).State)
}

func TestAPIRegister(t *testing.T) {
	e, _ := newTestServer(t)
	b := newBrowser(t, e)

	form := auth.RegistrationForm{
		FullName:        "Jane Doe",
		Email:           "admin@muxeditor.com",
		Username:        "jane",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		AcceptTerms:     true,
	}
	rec := b.postJSON("/api/register", form)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, auth.ReasonEmailTaken, errResp.Reason)
	assert.Equal(t, "email", errResp.Field)

	form.Email = "jane@example.com"
	rec = b.postJSON("/api/register", form)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "jane", decode[RegisterResponse](t, rec).Username)
}

func TestAPIPasswordStrength(t *testing.T) {
	e, _ := newTestServer(t)
	b := newBrowser(t, e)

	rec := b.postJSON("/api/password-strength", StrengthRequest{Password: "abcdef"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StrengthResponse{Score: 1, Label: "Zayıf", Acceptable: false}, decode[StrengthResponse](t, rec))

	rec = b.postJSON("/api/password-strength", StrengthRequest{Password: "abc"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, auth.ReasonPasswordTooShort, decode[ErrorResponse](t, rec).Reason)
}

func TestAPISales(t *testing.T) {
	e, _ := newTestServer(t)
	b := newBrowser(t, e)
	sale := map[string]any{"customerName": "Ada", "email": "ada@example.com", "package": "pro", "amount": 499.0}

	rec := b.postJSON("/api/sales", sale)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decode[ErrorResponse](t, rec).Reason)

	b.login("admin", "admin123")
	rec = b.postJSON("/api/sales", sale)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	sale["amount"] = 0
	rec = b.postJSON("/api/sales", sale)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "amount", decode[ErrorResponse](t, rec).Field)

	rec = b.get("/admin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ada@example.com")

	rec = b.postForm("/admin/sales/clear", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, b.get("/admin").Body.String(), "No sales yet.")
}

func TestXMLUpload(t *testing.T) {
	e, _ := newTestServer(t)
	b := newBrowser(t, e)
	b.login("admin", "admin123")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("package", "basic"))
	for _, name := range []string{"menu.xml", "notes.txt"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("<root/>"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	rec := b.do(http.MethodPost, "/admin/xml", &body, mw.FormDataContentType())
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get(echo.HeaderLocation))

	page := b.get("/admin").Body.String()
	assert.Contains(t, page, "1 XML file(s) added to the basic package.")
	assert.Contains(t, page, "menu.xml")
	assert.NotContains(t, page, "notes.txt")

	rec = b.postForm("/admin/xml/delete", url.Values{"package": {"basic"}, "name": {"menu.xml"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, b.get("/admin").Body.String(), "menu.xml deleted.")

	b.postForm("/admin/xml/delete", url.Values{"package": {"basic"}, "name": {"menu.xml"}})
	assert.Contains(t, b.get("/admin").Body.String(), "menu.xml is not attached to the basic package.")
}

func TestMetricsEndpoint(t *testing.T) {
	e, _ := newTestServer(t)
	b := newBrowser(t, e)
	b.login("admin", "admin123")

	rec := b.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `muxsite_test_session_events_total{event="login",outcome="success"} 1`)
}

func TestAuditAPI(t *testing.T) {
	e, _ := newTestServer(t)

	user := newBrowser(t, e)
	user.login("user", "user123")
	rec := user.get("/api/audit")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "wrong-role", decode[ErrorResponse](t, rec).Reason)

	assert.Equal(t, http.StatusUnauthorized, newBrowser(t, e).get("/api/audit").Code)

	admin := newBrowser(t, e)
	admin.postForm("/auth/login", url.Values{"username": {"admin"}, "password": {"bad"}})
	admin.login("admin", "admin123")

	rec = admin.get("/api/audit?username=admin")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[AuditResponse](t, rec)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "login", resp.Entries[0].Action, "most recent first")
	assert.Equal(t, "login_failed", resp.Entries[1].Action)
	assert.Equal(t, "2025-03-10", resp.EndDate)

	rec = admin.get("/api/audit?action=access_denied&username=user")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[AuditResponse](t, rec)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "user", resp.Entries[0].Username)
	assert.Equal(t, "wrong-role", resp.Entries[0].Reason)

	rec = admin.get("/api/audit?success=false&username=admin")
	assert.Equal(t, 1, decode[AuditResponse](t, rec).Count)

	rec = admin.get("/api/audit?start_date=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditPages(t *testing.T) {
	e, _ := newTestServer(t)
	admin := newBrowser(t, e)
	admin.login("admin", "admin123")

	rec := admin.get("/admin/audit")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1 entries")
	assert.Contains(t, rec.Body.String(), "No archives yet.")

	assert.Equal(t, http.StatusNotFound, admin.get("/admin/audit/archives/audit_2025-W01.tar.gz").Code)

	rec = admin.postJSON("/api/audit/rotate", struct{}{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RotationResponse{}, decode[RotationResponse](t, rec), "nothing is old enough yet")
}

func TestConfiguredPagePaths(t *testing.T) {
	pages := auth.Pages{
		Login:         "/login",
		Register:      "/signup",
		Landing:       "/home",
		Admin:         "/backoffice",
		Logout:        "/bye",
		RedirectDelay: time.Second,
	}
	e, _ := newTestServerWithPages(t, pages)
	b := newBrowser(t, e)

	rec := b.get("/home")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))

	rec = b.get("/login")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `action="/login"`)
	assert.Contains(t, body, `href="/login?demo=user"`)
	assert.Contains(t, body, `href="/signup"`)
	assert.NotContains(t, body, "/auth/login")

	// The rendered form action is a working route
	rec = b.postForm("/login", url.Values{"username": {"admin"}, "password": {"admin123"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "url=/backoffice")

	rec = b.get("/backoffice")
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.Contains(t, body, `action="/backoffice/xml"`)
	assert.Contains(t, body, `href="/backoffice/audit"`)
	assert.Contains(t, body, `href="/bye"`)
	assert.Equal(t, http.StatusOK, b.get("/backoffice/audit").Code)

	rec = b.get("/bye")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))

	rec = b.get("/signup")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/signup"`)
	assert.Contains(t, rec.Body.String(), `href="/signup/discord"`)
}

func TestRenderFailureSendsNothing(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	failing := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<p>partial"); err != nil {
			return err
		}
		return errors.New("template exploded")
	})

	err := render(c, http.StatusOK, failing)
	require.Error(t, err)
	assert.False(t, c.Response().Committed, "a failed render must leave the response to the error handler")
	assert.Empty(t, rec.Body.String())

	e.HTTPErrorHandler(err, c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "partial")
}
