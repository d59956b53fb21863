package cmd

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"evalgo.org/muxsite/auth"
	"evalgo.org/muxsite/internal/notify"
	"evalgo.org/muxsite/web/templates"
)

// Messages shown by the login and logout flows
const (
	msgMissingCredentials = "Please enter your username and password."
	msgInvalidCredentials = "Invalid username or password."
	msgLoginSuccess       = "Login successful! Redirecting..."
	msgDiscordSuccess     = "Discord login successful! Redirecting..."
	msgDiscordFailed      = "Discord login failed. Please try again."
	msgLoggedOut          = "You have been logged out."
	msgInternalError      = "Something went wrong. Please try again."
)

// loginPageHandler serves the login page. It also completes the Discord
// callback when the request carries a code parameter.
func (a *App) loginPageHandler(c echo.Context) error {
	svc := scopeOf(c)
	ctx := c.Request().Context()

	if c.QueryParam("code") != "" {
		session, cleaned, err := svc.OAuth.HandleCallback(ctx, c.Request().URL)
		if err != nil {
			a.logger.WithError(err).Warn("Discord callback failed")
			if err := svc.Flash.Present(ctx, notify.Error(msgDiscordFailed)); err != nil {
				a.logger.WithError(err).Warn("Failed to flash notice")
			}
			return c.Redirect(http.StatusFound, cleaned.RequestURI())
		}
		n := notify.Success(msgDiscordSuccess)
		return render(c, http.StatusOK, templates.Redirect(a.cfg.Pages.LandingFor(session.Role), a.cfg.Pages.RedirectDelay, &n))
	}

	if d := svc.Guard.Evaluate(ctx, auth.AuthEntry); !d.Allow {
		return followDecision(c, svc, d)
	}

	view := templates.LoginView{
		Pages:    a.cfg.Pages,
		OAuthURL: svc.OAuth.AuthorizationURL(requestOrigin(c)),
		Notice:   a.popNotice(c, svc),
	}
	if demo := c.QueryParam("demo"); demo != "" {
		if username, password, ok := auth.DemoCredentials(demo); ok {
			view.Username, view.Password = username, password
			n := notify.Info("Demo " + username + " credentials filled in.")
			view.Notice = &n
		}
	}
	return render(c, http.StatusOK, templates.Login(view))
}

// loginHandler processes login form submissions
func (a *App) loginHandler(c echo.Context) error {
	svc := scopeOf(c)
	username := strings.TrimSpace(c.FormValue("username"))
	password := c.FormValue("password")

	view := templates.LoginView{
		Pages:    a.cfg.Pages,
		Username: username,
		OAuthURL: svc.OAuth.AuthorizationURL(requestOrigin(c)),
	}

	if username == "" || password == "" {
		n := notify.Error(msgMissingCredentials)
		view.Notice = &n
		return render(c, http.StatusBadRequest, templates.Login(view))
	}

	session, err := svc.Manager.Login(c.Request().Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			n := notify.Error(msgInvalidCredentials)
			view.Notice = &n
			return render(c, http.StatusUnauthorized, templates.Login(view))
		}
		a.logger.WithError(err).Error("Login failed")
		n := notify.Error(msgInternalError)
		view.Notice = &n
		return render(c, http.StatusInternalServerError, templates.Login(view))
	}

	n := notify.Success(msgLoginSuccess)
	return render(c, http.StatusOK, templates.Redirect(a.cfg.Pages.LandingFor(session.Role), a.cfg.Pages.RedirectDelay, &n))
}

// logoutHandler ends the session and returns to the login page
func (a *App) logoutHandler(c echo.Context) error {
	svc := scopeOf(c)
	ctx := c.Request().Context()

	if err := svc.Manager.Logout(ctx); err != nil {
		a.logger.WithError(err).Error("Logout failed")
		return echo.NewHTTPError(http.StatusInternalServerError, msgInternalError).SetInternal(err)
	}
	if err := svc.Flash.Present(ctx, notify.Success(msgLoggedOut)); err != nil {
		a.logger.WithError(err).Warn("Failed to flash notice")
	}
	return c.Redirect(http.StatusFound, a.cfg.Pages.Login)
}

// discordLoginHandler sends the viewer to the Discord authorization page
func (a *App) discordLoginHandler(c echo.Context) error {
	return c.Redirect(http.StatusFound, scopeOf(c).OAuth.AuthorizationURL(requestOrigin(c)))
}

// popNotice returns and clears the pending flash notice
func (a *App) popNotice(c echo.Context, svc *ScopeServices) *notify.Notice {
	n, err := svc.Flash.Pop(c.Request().Context())
	if err != nil {
		a.logger.WithError(err).Warn("Failed to read flash notice")
		return nil
	}
	return n
}

// requestOrigin returns scheme://host of the current request
func requestOrigin(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host
}
