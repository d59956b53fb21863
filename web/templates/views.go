// Package templates renders the site's HTML pages as templ components.
//
// The *.templ files are the sources; run `templ generate` after editing them.
package templates

import (
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"evalgo.org/muxsite/auth"
	"evalgo.org/muxsite/internal/catalog"
	"evalgo.org/muxsite/internal/notify"
)

// LoginView is the data of the login page
type LoginView struct {
	Pages    auth.Pages
	Username string
	Password string
	OAuthURL string
	Notice   *notify.Notice
}

// RegisterView is the data of the registration page
type RegisterView struct {
	Pages    auth.Pages
	Form     auth.RegistrationForm
	Strength *auth.PasswordStrength
	Notice   *notify.Notice
}

// MainMenuView is the data of the landing page
type MainMenuView struct {
	Pages   auth.Pages
	Session *auth.Session
	Notice  *notify.Notice
}

// AdminView is the data of the admin panel
type AdminView struct {
	Pages   auth.Pages
	Session *auth.Session
	Sales   []catalog.Sale
	Files   map[catalog.Package][]string
	Audit   []auth.AuditEntry
	Notice  *notify.Notice
}

// AuditLogView is the data of the audit log page
type AuditLogView struct {
	Pages    auth.Pages
	Criteria auth.AuditSearchCriteria
	Entries  []auth.AuditEntry
	Archives []string
	Notice   *notify.Notice
}

type resultOption struct {
	Value string
	Label string
}

var resultOptions = []resultOption{
	{Value: "", Label: "All"},
	{Value: "true", Label: "Succeeded"},
	{Value: "false", Label: "Failed"},
}

// refreshContent is the meta refresh value sending the viewer to target after delay
func refreshContent(delay time.Duration, target string) string {
	return strconv.FormatFloat(delay.Seconds(), 'f', -1, 64) + ";url=" + target
}

func demoURL(p auth.Pages, who string) string {
	return p.Login + "?demo=" + url.QueryEscape(who)
}

func adminURL(p auth.Pages, sub string) string {
	return strings.TrimRight(p.Admin, "/") + sub
}

func archiveURL(p auth.Pages, archive string) string {
	return adminURL(p, "/audit/archives/"+url.PathEscape(filepath.Base(archive)))
}

func packageLabel(pkg catalog.Package) string {
	s := string(pkg)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

func formatScore(score int) string {
	return strconv.Itoa(score) + "/5"
}

func auditResult(e auth.AuditEntry) string {
	if e.Success {
		return "ok"
	}
	if e.Reason != "" {
		return e.Reason
	}
	return "failed"
}

func successValue(success *bool) string {
	if success == nil {
		return ""
	}
	return strconv.FormatBool(*success)
}

func entriesTitle(n int) string {
	return strconv.Itoa(n) + " entries"
}
