package templates

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/muxsite/auth"
	"evalgo.org/muxsite/internal/catalog"
	"evalgo.org/muxsite/internal/notify"
)

func TestRedirect_MetaRefresh(t *testing.T) {
	var buf bytes.Buffer
	n := notify.Info("You are already logged in. Redirecting...")
	require.NoError(t, Redirect("/admin", 1500*time.Millisecond, &n).Render(context.Background(), &buf))

	out := buf.String()
	assert.Contains(t, out, `content="1.5;url=/admin"`)
	assert.Contains(t, out, `data-kind="info"`)
	assert.Contains(t, out, "Redirecting...")
}

func TestLogin_EscapesValues(t *testing.T) {
	var buf bytes.Buffer
	view := LoginView{Username: `"><script>`, OAuthURL: "https://discord.com/api/oauth2/authorize?a=1&b=2"}
	require.NoError(t, Login(view).Render(context.Background(), &buf))

	out := buf.String()
	assert.NotContains(t, out, `"><script>`)
	assert.Contains(t, out, "a=1&amp;b=2")
}

func TestAdmin_ListsRecords(t *testing.T) {
	var buf bytes.Buffer
	view := AdminView{
		Pages:   auth.DefaultPages(),
		Session: &auth.Session{SubjectID: "admin", DisplayName: "Admin", Role: auth.RoleAdmin},
		Sales:   []catalog.Sale{{CustomerName: "Ali", Email: "ali@example.com", Package: catalog.PackagePro, Amount: 299}},
		Files:   map[catalog.Package][]string{catalog.PackageBasic: {"songs.xml"}},
		Audit:   []auth.AuditEntry{{Username: "user", Action: "login_failed"}},
	}
	require.NoError(t, Admin(view).Render(context.Background(), &buf))

	out := buf.String()
	assert.Contains(t, out, "Ali")
	assert.Contains(t, out, "299₺")
	assert.Contains(t, out, "songs.xml")
	assert.Contains(t, out, "login_failed")
}

func TestLogin_EscapesAttributeValues(t *testing.T) {
	var buf bytes.Buffer
	view := LoginView{Pages: auth.DefaultPages(), Username: `a" onfocus="alert(1)`}
	require.NoError(t, Login(view).Render(context.Background(), &buf))

	out := buf.String()
	assert.NotContains(t, out, `onfocus="alert(1)"`)
	assert.Contains(t, out, `value="a&#34; onfocus=&#34;alert(1)"`)
}

func TestPages_LinksFollowConfiguredPaths(t *testing.T) {
	pages := auth.Pages{
		Login:    "/login",
		Register: "/signup",
		Landing:  "/home",
		Admin:    "/backoffice",
		Logout:   "/bye",
	}
	session := &auth.Session{SubjectID: "admin", DisplayName: "Admin", Role: auth.RoleAdmin}

	tests := []struct {
		name      string
		component func() templ.Component
		want      []string
	}{
		{
			name:      "login",
			component: func() templ.Component { return Login(LoginView{Pages: pages}) },
			want:      []string{`action="/login"`, `href="/login?demo=admin"`, `href="/signup"`, `href="/home"`, `href="/bye"`},
		},
		{
			name:      "register",
			component: func() templ.Component { return Register(RegisterView{Pages: pages}) },
			want:      []string{`action="/signup"`, `href="/signup/discord"`, `href="/login"`},
		},
		{
			name:      "main menu",
			component: func() templ.Component { return MainMenu(MainMenuView{Pages: pages, Session: session}) },
			want:      []string{`href="/home"`, `href="/bye"`},
		},
		{
			name:      "admin",
			component: func() templ.Component { return Admin(AdminView{Pages: pages, Session: session}) },
			want:      []string{`action="/backoffice/xml"`, `action="/backoffice/sales/clear"`, `href="/backoffice/audit"`},
		},
		{
			name: "audit log",
			component: func() templ.Component {
				return AuditLog(AuditLogView{Pages: pages, Archives: []string{"/data/audit/archives/audit_2025-W10.tar.gz"}})
			},
			want: []string{`action="/backoffice/audit"`, `href="/backoffice/audit/archives/audit_2025-W10.tar.gz"`, `href="/backoffice"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tt.component().Render(context.Background(), &buf))
			out := buf.String()
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			assert.NotContains(t, out, "/auth/")
			assert.NotContains(t, out, "/mainmenu")
		})
	}
}

func TestAuditLog_KeepsSelectedResult(t *testing.T) {
	var buf bytes.Buffer
	failed := false
	view := AuditLogView{Pages: auth.DefaultPages(), Criteria: auth.AuditSearchCriteria{Success: &failed}}
	require.NoError(t, AuditLog(view).Render(context.Background(), &buf))

	out := buf.String()
	assert.Contains(t, out, `<option value="false" selected>Failed</option>`)
	assert.Contains(t, out, "0 entries")
	assert.Contains(t, out, "No archives yet.")
}
