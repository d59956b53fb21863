package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

const auditDateLayout = "2006-01-02"

// AuditEntry represents a single audit log entry
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Scope     string    `json:"scope,omitempty"`
	Username  string    `json:"username,omitempty"`
	Role      string    `json:"role,omitempty"`
	Action    string    `json:"action"`
	Method    string    `json:"method,omitempty"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// AuditLog represents a day's worth of audit entries
type AuditLog struct {
	Date    string       `json:"date"` // YYYY-MM-DD format
	Entries []AuditEntry `json:"entries"`
}

// RequestInfo describes where a lifecycle event came from.
type RequestInfo struct {
	Scope     string
	IPAddress string
	UserAgent string
}

type requestInfoKey struct{}

// WithRequestInfo attaches request metadata for audit entries to ctx.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom returns the metadata attached by WithRequestInfo.
func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// AuditLogger handles audit log storage and rotation.
// It observes lifecycle events and keeps one JSON file per day.
type AuditLogger struct {
	dataDir  string
	mutex    sync.RWMutex
	lockFile *flock.Flock
	logger   logrus.FieldLogger
	now      func() time.Time
}

// AuditOption configures an AuditLogger
type AuditOption func(*AuditLogger)

// WithAuditClock replaces time.Now for entry timestamps and rotation cutoffs.
func WithAuditClock(now func() time.Time) AuditOption {
	return func(l *AuditLogger) { l.now = now }
}

// NewAuditLogger creates a new audit logger writing to <dataDir>/audit.
func NewAuditLogger(dataDir string, logger logrus.FieldLogger, opts ...AuditOption) (*AuditLogger, error) {
	auditDir := filepath.Join(dataDir, "audit")

	// Create audit directory if it doesn't exist
	if err := os.MkdirAll(auditDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	l := &AuditLogger{
		dataDir:  auditDir,
		lockFile: flock.New(filepath.Join(auditDir, ".audit.lock")),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Observe records a lifecycle event. Write failures are logged, not returned.
func (l *AuditLogger) Observe(ctx context.Context, e Event) {
	info := RequestInfoFrom(ctx)
	entry := AuditEntry{
		Timestamp: e.At,
		Scope:     info.Scope,
		Username:  e.SubjectID,
		Role:      string(e.Role),
		Action:    string(e.Type),
		Method:    string(e.Method),
		Success:   e.Success,
		Reason:    e.Reason,
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
	}
	if err := l.LogEntry(entry); err != nil {
		l.logger.WithError(err).WithField("action", entry.Action).Warn("Failed to write audit entry")
	}
}

// LogEntry writes an audit entry to the log
func (l *AuditLogger) LogEntry(entry AuditEntry) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	// Acquire lock
	locked, err := l.lockFile.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("could not acquire lock")
	}
	defer func() { _ = l.lockFile.Unlock() }()

	// Set timestamp if not set
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}

	date := entry.Timestamp.Format(auditDateLayout)
	logFile := l.logPath(date)

	// Load existing log or create new one
	log, err := l.readLog(date)
	if err != nil {
		return err
	}
	log.Entries = append(log.Entries, entry)

	// Write to temp file first (atomic write)
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}
	tempFile := logFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, logFile); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// GetEntriesForDate retrieves all audit entries for a specific date
func (l *AuditLogger) GetEntriesForDate(date string) ([]AuditEntry, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	log, err := l.readLog(date)
	if err != nil {
		return nil, err
	}
	return log.Entries, nil
}

// GetEntriesRange retrieves all audit entries within a date range
func (l *AuditLogger) GetEntriesRange(startDate, endDate string) ([]AuditEntry, error) {
	start, err := time.Parse(auditDateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse(auditDateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date: %w", err)
	}

	l.mutex.RLock()
	defer l.mutex.RUnlock()

	var allEntries []AuditEntry
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		log, err := l.readLog(date.Format(auditDateLayout))
		if err != nil {
			// Skip unreadable days
			continue
		}
		allEntries = append(allEntries, log.Entries...)
	}

	return allEntries, nil
}

// GetRecentEntries returns up to limit entries from the last 7 days, newest first
func (l *AuditLogger) GetRecentEntries(limit int) ([]AuditEntry, error) {
	endDate := l.now()
	startDate := endDate.AddDate(0, 0, -7)

	entries, err := l.GetEntriesRange(startDate.Format(auditDateLayout), endDate.Format(auditDateLayout))
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// ListLogFiles returns all audit log files
func (l *AuditLogger) ListLogFiles() ([]string, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.listLogFiles()
}

// RotateOldLogs deletes daily logs older than daysToKeep days
func (l *AuditLogger) RotateOldLogs(daysToKeep int) (int, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	cutoffDate := l.now().AddDate(0, 0, -daysToKeep)

	files, err := l.listLogFiles()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, file := range files {
		fileDate, ok := logFileDate(file)
		if !ok {
			continue
		}

		if fileDate.Before(cutoffDate) {
			if err := os.Remove(file); err != nil {
				return removed, fmt.Errorf("failed to remove old log file: %w", err)
			}
			removed++
		}
	}

	return removed, nil
}

// SearchEntries searches for audit entries matching criteria
func (l *AuditLogger) SearchEntries(criteria AuditSearchCriteria) ([]AuditEntry, error) {
	entries, err := l.GetEntriesRange(criteria.StartDate, criteria.EndDate)
	if err != nil {
		return nil, err
	}

	var filtered []AuditEntry
	for _, entry := range entries {
		if matchesCriteria(entry, criteria) {
			filtered = append(filtered, entry)
		}
	}

	return filtered, nil
}

// AuditSearchCriteria defines search parameters for audit logs
type AuditSearchCriteria struct {
	StartDate string // YYYY-MM-DD
	EndDate   string // YYYY-MM-DD
	Username  string
	Action    string
	Scope     string
	Success   *bool // nil = all
}

func (l *AuditLogger) logPath(date string) string {
	return filepath.Join(l.dataDir, fmt.Sprintf("audit_%s.json", date))
}

// readLog loads one day; callers hold the mutex
func (l *AuditLogger) readLog(date string) (*AuditLog, error) {
	data, err := os.ReadFile(l.logPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return &AuditLog{Date: date, Entries: []AuditEntry{}}, nil
		}
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	var log AuditLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("failed to parse log file: %w", err)
	}
	return &log, nil
}

func (l *AuditLogger) listLogFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(l.dataDir, "audit_*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	return files, nil
}

// matchesCriteria checks if an entry matches the search criteria
func matchesCriteria(entry AuditEntry, criteria AuditSearchCriteria) bool {
	if criteria.Username != "" && entry.Username != criteria.Username {
		return false
	}
	if criteria.Action != "" && entry.Action != criteria.Action {
		return false
	}
	if criteria.Scope != "" && entry.Scope != criteria.Scope {
		return false
	}
	if criteria.Success != nil && entry.Success != *criteria.Success {
		return false
	}
	return true
}
