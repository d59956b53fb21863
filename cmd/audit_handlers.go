package cmd

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"

	"evalgo.org/muxsite/auth"
	"evalgo.org/muxsite/web/templates"
)

const auditDateFormat = "2006-01-02"

// AuditResponse is the result of an audit search
type AuditResponse struct {
	StartDate string            `json:"start_date"`
	EndDate   string            `json:"end_date"`
	Count     int               `json:"count"`
	Entries   []auth.AuditEntry `json:"entries"`
}

// RotationResponse reports one archive and prune run
type RotationResponse struct {
	Compressed      int `json:"compressed"`
	ArchivesWritten int `json:"archives_written"`
	ArchivesRemoved int `json:"archives_removed"`
	LogsRemoved     int `json:"logs_removed"`
}

// auditPageHandler serves the audit log search page
func (a *App) auditPageHandler(c echo.Context) error {
	criteria := a.auditCriteria(c)
	entries, err := a.searchAudit(criteria)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	archives, err := a.audit.ListArchives()
	if err != nil {
		a.logger.WithError(err).Warn("Failed to list audit archives")
	}

	return render(c, http.StatusOK, templates.AuditLog(templates.AuditLogView{
		Pages:    a.cfg.Pages,
		Criteria: criteria,
		Entries:  entries,
		Archives: archives,
		Notice:   a.popNotice(c, scopeOf(c)),
	}))
}

// auditArchiveHandler downloads one weekly archive
func (a *App) auditArchiveHandler(c echo.Context) error {
	name := c.Param("name")
	archives, err := a.audit.ListArchives()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list archives").SetInternal(err)
	}
	// Only names the logger itself reports are served
	for _, archive := range archives {
		if filepath.Base(archive) == name {
			return c.Attachment(archive, name)
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, "Archive not found")
}

// apiAuditHandler returns audit entries as JSON
//
//	start_date, end_date: YYYY-MM-DD, default the last 7 days
//	username, action, scope: exact matches
//	success: true or false
func (a *App) apiAuditHandler(c echo.Context) error {
	criteria := a.auditCriteria(c)
	entries, err := a.searchAudit(criteria)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Reason: "invalid-date"})
	}
	return c.JSON(http.StatusOK, AuditResponse{
		StartDate: criteria.StartDate,
		EndDate:   criteria.EndDate,
		Count:     len(entries),
		Entries:   entries,
	})
}

// apiAuditRotateHandler archives and prunes the audit trail now
func (a *App) apiAuditRotateHandler(c echo.Context) error {
	result, err := a.rotateAuditNow()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to rotate logs"})
	}
	return c.JSON(http.StatusOK, result)
}

// auditCriteria reads the search parameters, defaulting to the last 7 days
func (a *App) auditCriteria(c echo.Context) auth.AuditSearchCriteria {
	now := a.now()
	criteria := auth.AuditSearchCriteria{
		StartDate: c.QueryParam("start_date"),
		EndDate:   c.QueryParam("end_date"),
		Username:  c.QueryParam("username"),
		Action:    c.QueryParam("action"),
		Scope:     c.QueryParam("scope"),
	}
	if criteria.StartDate == "" {
		criteria.StartDate = now.AddDate(0, 0, -7).Format(auditDateFormat)
	}
	if criteria.EndDate == "" {
		criteria.EndDate = now.Format(auditDateFormat)
	}
	if success, err := strconv.ParseBool(c.QueryParam("success")); err == nil {
		criteria.Success = &success
	}
	return criteria
}

// searchAudit runs the search and returns the most recent entries first
func (a *App) searchAudit(criteria auth.AuditSearchCriteria) ([]auth.AuditEntry, error) {
	entries, err := a.audit.SearchEntries(criteria)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
