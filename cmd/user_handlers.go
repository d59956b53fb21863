package cmd

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"evalgo.org/muxsite/auth"
	"evalgo.org/muxsite/internal/notify"
	"evalgo.org/muxsite/web/templates"
)

const (
	msgRegistered      = "Registration successful! You can now log in."
	msgDiscordRegister = "Discord registration is coming soon."
)

// registerPageHandler serves the registration form
func (a *App) registerPageHandler(c echo.Context) error {
	svc := scopeOf(c)
	return render(c, http.StatusOK, templates.Register(templates.RegisterView{
		Pages:  a.cfg.Pages,
		Notice: a.popNotice(c, svc),
	}))
}

// registerHandler processes registration form submissions
func (a *App) registerHandler(c echo.Context) error {
	svc := scopeOf(c)
	form := registrationFormFromRequest(c)

	view := templates.RegisterView{Pages: a.cfg.Pages, Form: form}
	if strength, err := auth.EvaluatePassword(form.Password); err == nil {
		view.Strength = &strength
	}

	if _, err := svc.Manager.Register(c.Request().Context(), form); err != nil {
		if msg := validationMessage(err); msg != "" {
			n := notify.Error(msg)
			view.Notice = &n
			return render(c, http.StatusUnprocessableEntity, templates.Register(view))
		}
		a.logger.WithError(err).Error("Registration failed")
		n := notify.Error(msgInternalError)
		view.Notice = &n
		return render(c, http.StatusInternalServerError, templates.Register(view))
	}

	if err := svc.Flash.Present(c.Request().Context(), notify.Success(msgRegistered)); err != nil {
		a.logger.WithError(err).Warn("Failed to flash notice")
	}
	return c.Redirect(http.StatusFound, a.cfg.Pages.Login)
}

// discordRegisterHandler tells the viewer Discord registration is not available yet
func (a *App) discordRegisterHandler(c echo.Context) error {
	n := notify.Info(msgDiscordRegister)
	return render(c, http.StatusOK, templates.Register(templates.RegisterView{Pages: a.cfg.Pages, Notice: &n}))
}

// registrationFormFromRequest reads the form fields; any truthy or "on" terms value counts as accepted
func registrationFormFromRequest(c echo.Context) auth.RegistrationForm {
	terms := strings.TrimSpace(c.FormValue("terms"))
	accepted, err := strconv.ParseBool(terms)
	if err != nil {
		accepted = strings.EqualFold(terms, "on")
	}
	return auth.RegistrationForm{
		FullName:        c.FormValue("fullname"),
		Email:           c.FormValue("email"),
		Username:        c.FormValue("username"),
		Password:        c.FormValue("password"),
		ConfirmPassword: c.FormValue("confirmPassword"),
		AcceptTerms:     accepted,
	}
}
