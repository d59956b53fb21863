package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"evalgo.org/muxsite/internal/catalog"
	"evalgo.org/muxsite/internal/domain"
	"evalgo.org/muxsite/internal/notify"
	"evalgo.org/muxsite/web/templates"
)

const recentAuditEntries = 20

// homeHandler sends the viewer to their landing page, or to login
func (a *App) homeHandler(c echo.Context) error {
	if session := CurrentSession(c); session != nil {
		return c.Redirect(http.StatusFound, a.cfg.Pages.LandingFor(session.Role))
	}
	return c.Redirect(http.StatusFound, a.cfg.Pages.Login)
}

// mainMenuHandler serves the landing page of authenticated viewers
func (a *App) mainMenuHandler(c echo.Context) error {
	svc := scopeOf(c)
	return render(c, http.StatusOK, templates.MainMenu(templates.MainMenuView{
		Pages:   a.cfg.Pages,
		Session: CurrentSession(c),
		Notice:  a.popNotice(c, svc),
	}))
}

// adminHandler serves the admin panel
func (a *App) adminHandler(c echo.Context) error {
	svc := scopeOf(c)
	ctx := c.Request().Context()

	sales, err := svc.Sales.List(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load sales").SetInternal(err)
	}
	files, err := svc.Files.List(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load XML files").SetInternal(err)
	}
	entries, err := a.audit.GetRecentEntries(recentAuditEntries)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to load recent audit entries")
	}

	return render(c, http.StatusOK, templates.Admin(templates.AdminView{
		Pages:   a.cfg.Pages,
		Session: CurrentSession(c),
		Sales:   sales,
		Files:   files,
		Audit:   entries,
		Notice:  a.popNotice(c, svc),
	}))
}

// xmlUploadHandler attaches the names of uploaded XML files to a package
func (a *App) xmlUploadHandler(c echo.Context) error {
	svc := scopeOf(c)
	ctx := c.Request().Context()

	pkg := catalog.Package(c.FormValue("package"))
	var uploads []catalog.Upload
	if form, err := c.MultipartForm(); err == nil {
		for _, fh := range form.File["files"] {
			uploads = append(uploads, catalog.Upload{Name: fh.Filename, ContentType: fh.Header.Get(echo.HeaderContentType)})
		}
	}

	added, err := svc.Files.Add(ctx, pkg, uploads)
	var n notify.Notice
	switch {
	case err != nil && validationMessage(err) != "":
		n = notify.Error(validationMessage(err))
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to store XML files").SetInternal(err)
	case added == 0:
		n = notify.Warning("No XML files were found in the upload.")
	default:
		n = notify.Success(fmt.Sprintf("%d XML file(s) added to the %s package.", added, pkg))
	}
	return a.flashAndReturn(c, svc, n)
}

// xmlDeleteHandler removes one file name from a package
func (a *App) xmlDeleteHandler(c echo.Context) error {
	svc := scopeOf(c)
	pkg := catalog.Package(c.FormValue("package"))
	name := c.FormValue("name")

	err := svc.Files.Remove(c.Request().Context(), pkg, name)
	var nf *domain.NotFoundError
	var n notify.Notice
	switch {
	case errors.As(err, &nf):
		n = notify.Warning(fmt.Sprintf("%s is not attached to the %s package.", name, pkg))
	case err != nil && validationMessage(err) != "":
		n = notify.Error(validationMessage(err))
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete XML file").SetInternal(err)
	default:
		n = notify.Success(fmt.Sprintf("%s deleted.", name))
	}
	return a.flashAndReturn(c, svc, n)
}

// salesClearHandler empties the sales ledger
func (a *App) salesClearHandler(c echo.Context) error {
	svc := scopeOf(c)
	if err := svc.Sales.Clear(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to clear sales").SetInternal(err)
	}
	return a.flashAndReturn(c, svc, notify.Success("Sales history cleared."))
}

func (a *App) flashAndReturn(c echo.Context, svc *ScopeServices, n notify.Notice) error {
	if err := svc.Flash.Present(c.Request().Context(), n); err != nil {
		a.logger.WithError(err).Warn("Failed to flash notice")
	}
	return c.Redirect(http.StatusSeeOther, a.cfg.Pages.Admin)
}

// render writes component as an HTML response with status.
// Nothing is sent when rendering fails, so the error handler can still respond.
func render(c echo.Context, status int, component templ.Component) error {
	var buf bytes.Buffer
	if err := component.Render(c.Request().Context(), &buf); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	return c.HTMLBlob(status, buf.Bytes())
}

// validationMessage returns the viewer-facing message of a validation error, or ""
func validationMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return ""
}
