package cmd

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"evalgo.org/muxsite/auth"
	"evalgo.org/muxsite/internal/catalog"
	"evalgo.org/muxsite/internal/domain"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Field  string `json:"field,omitempty"`
}

// LoginRequest carries password login credentials
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse describes the viewer's session state
type SessionResponse struct {
	State     string        `json:"state"`
	Session   *auth.Session `json:"session,omitempty"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	Redirect  string        `json:"redirect,omitempty"`
}

// RegisterResponse confirms a registration
type RegisterResponse struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Message  string `json:"message"`
}

// StrengthRequest carries a password to score
type StrengthRequest struct {
	Password string `json:"password"`
}

// StrengthResponse is a password strength score
type StrengthResponse struct {
	Score      int    `json:"score"`
	Label      string `json:"label"`
	Acceptable bool   `json:"acceptable"`
}

// apiSessionHandler reports the current session state, erasing an expired session
func (a *App) apiSessionHandler(c echo.Context) error {
	state, session := scopeOf(c).Manager.Inspect(c.Request().Context())
	return c.JSON(http.StatusOK, newSessionResponse(state, session, ""))
}

// apiLoginHandler starts a password session
func (a *App) apiLoginHandler(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgMissingCredentials, Reason: "missing-credentials"})
	}

	session, err := scopeOf(c).Manager.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: msgInvalidCredentials, Reason: "invalid-credentials"})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, msgInternalError).SetInternal(err)
	}
	return c.JSON(http.StatusOK, newSessionResponse(auth.StateAuthenticated, session, a.cfg.Pages.LandingFor(session.Role)))
}

// apiLogoutHandler ends the session
func (a *App) apiLogoutHandler(c echo.Context) error {
	if err := scopeOf(c).Manager.Logout(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, msgInternalError).SetInternal(err)
	}
	return c.JSON(http.StatusOK, newSessionResponse(auth.StateAnonymous, nil, a.cfg.Pages.Login))
}

// apiRegisterHandler registers a user in the viewer's scope
func (a *App) apiRegisterHandler(c echo.Context) error {
	var form auth.RegistrationForm
	if err := c.Bind(&form); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
	}

	user, err := scopeOf(c).Manager.Register(c.Request().Context(), form)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: verr.Message, Reason: verr.Reason, Field: verr.Field})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, msgInternalError).SetInternal(err)
	}
	return c.JSON(http.StatusCreated, RegisterResponse{
		Username: strings.ToLower(strings.TrimSpace(form.Username)),
		Name:     user.Name,
		Message:  msgRegistered,
	})
}

// apiPasswordStrengthHandler scores a password
func (a *App) apiPasswordStrengthHandler(c echo.Context) error {
	var req StrengthRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
	}
	strength, err := auth.EvaluatePassword(req.Password)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Reason: auth.ReasonPasswordTooShort, Field: "password"})
	}
	return c.JSON(http.StatusOK, StrengthResponse{Score: strength.Score, Label: strength.Label, Acceptable: strength.Acceptable()})
}

// apiOAuthURLHandler returns the Discord authorization URL for this origin
func (a *App) apiOAuthURLHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"url": scopeOf(c).OAuth.AuthorizationURL(requestOrigin(c))})
}

// apiSalesHandler records a sale
func (a *App) apiSalesHandler(c echo.Context) error {
	var sale catalog.Sale
	if err := c.Bind(&sale); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
	}
	saved, err := scopeOf(c).Sales.Add(c.Request().Context(), sale)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: verr.Message, Reason: verr.Reason, Field: verr.Field})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to record sale").SetInternal(err)
	}
	return c.JSON(http.StatusCreated, saved)
}

// APIAuthMiddleware rejects API calls without a valid session with 401.
// When role is set, sessions with another role get 403.
func APIAuthMiddleware(role auth.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			manager := scopeOf(c).Manager
			ctx := c.Request().Context()

			var session *auth.Session
			var err error
			if role == "" {
				var state auth.State
				state, session = manager.Inspect(ctx)
				switch {
				case state == auth.StateExpired:
					err = auth.ErrSessionExpired
				case session == nil:
					err = auth.ErrNotAuthenticated
				}
			} else {
				session, err = manager.RequireRole(ctx, role)
			}

			if err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, auth.ErrWrongRole) {
					status = http.StatusForbidden
				}
				return c.JSON(status, ErrorResponse{Error: auth.DenialNotice(err).Text, Reason: auth.DenialReason(err)})
			}
			c.Set(sessionKey, session)
			return next(c)
		}
	}
}

func newSessionResponse(state auth.State, session *auth.Session, redirect string) SessionResponse {
	resp := SessionResponse{State: state.String(), Session: session, Redirect: redirect}
	if session != nil {
		expires := session.ExpiresAt()
		resp.ExpiresAt = &expires
	}
	return resp
}
