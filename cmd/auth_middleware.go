package cmd

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"evalgo.org/muxsite/auth"
	"evalgo.org/muxsite/web/templates"
)

const (
	scopeCookieName = "muxsite_scope"
	scopeContextKey = "scope"
	sessionKey      = "session"
)

// ScopeMiddleware resolves the viewer's storage scope from the signed scope
// cookie, issuing a fresh scope when the cookie is missing or invalid.
func (a *App) ScopeMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			scopeID := ""
			if cookie, err := c.Cookie(scopeCookieName); err == nil && cookie.Value != "" {
				claims, err := auth.ValidateScopeToken(cookie.Value, a.cfg.Auth.Secret)
				if err != nil {
					a.logger.WithError(err).Debug("Rejecting scope cookie")
				} else {
					scopeID = claims.ScopeID
				}
			}

			if scopeID == "" {
				scopeID = auth.NewScopeID()
				token, err := auth.GenerateScopeToken(scopeID, a.cfg.Auth.Secret, a.now())
				if err != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "Failed to issue scope").SetInternal(err)
				}
				c.SetCookie(&http.Cookie{
					Name:     scopeCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: true,
					Secure:   isHTTPS(c),
					SameSite: http.SameSiteLaxMode,
					MaxAge:   int(auth.ScopeTokenLifetime.Seconds()),
				})
			}

			svc, err := a.Scope(scopeID)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to open scope").SetInternal(err)
			}
			c.Set(scopeContextKey, svc)

			req := c.Request()
			ctx := auth.WithRequestInfo(req.Context(), auth.RequestInfo{
				Scope:     scopeID,
				IPAddress: c.RealIP(),
				UserAgent: req.UserAgent(),
			})
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// GuardMiddleware runs the page guard for requirement req.
// Denied viewers are redirected with the guard's notice.
func GuardMiddleware(req auth.Requirement) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			svc := scopeOf(c)
			decision := svc.Guard.Evaluate(c.Request().Context(), req)
			if decision.Allow {
				c.Set(sessionKey, decision.Session)
				return next(c)
			}
			return followDecision(c, svc, decision)
		}
	}
}

// followDecision sends the viewer where a denying decision points.
// Delayed redirects render a transition page carrying the notice; immediate
// ones flash the notice for the target page.
func followDecision(c echo.Context, svc *ScopeServices, d auth.Decision) error {
	if d.Delay > 0 {
		return render(c, http.StatusOK, templates.Redirect(d.Redirect, d.Delay, d.Notice))
	}
	if d.Notice != nil {
		if err := svc.Flash.Present(c.Request().Context(), *d.Notice); err != nil {
			log.WithError(err).WithField("scope", svc.ID).Warn("Failed to flash notice")
		}
	}
	return c.Redirect(http.StatusFound, d.Redirect)
}

// scopeOf returns the services bound by ScopeMiddleware
func scopeOf(c echo.Context) *ScopeServices {
	svc, _ := c.Get(scopeContextKey).(*ScopeServices)
	return svc
}

// CurrentSession returns the session the guard admitted, or nil on public pages
func CurrentSession(c echo.Context) *auth.Session {
	session, _ := c.Get(sessionKey).(*auth.Session)
	return session
}

func isHTTPS(c echo.Context) bool {
	return c.Scheme() == "https" || c.Request().Header.Get("X-Forwarded-Proto") == "https"
}
