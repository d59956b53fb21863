package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestAuditLogger(t *testing.T, clock *fakeClock) *AuditLogger {
	t.Helper()
	l, err := NewAuditLogger(t.TempDir(), nil, WithAuditClock(clock.Now))
	if err != nil {
		t.Fatalf("NewAuditLogger() failed: %v", err)
	}
	return l
}

func TestAuditLogger_ObserveLifecycle(t *testing.T) {
	clock := newFakeClock()
	audit := newTestAuditLogger(t, clock)
	m := NewManager(newTestScope(t), WithClock(clock.Now), WithObserver(audit))

	ctx := WithRequestInfo(context.Background(), RequestInfo{Scope: "scope-1", IPAddress: "10.0.0.1", UserAgent: "test-agent"})
	if _, err := m.Login(ctx, "admin", "nope"); err == nil {
		t.Fatal("Login() with wrong password succeeded")
	}
	if _, err := m.Login(ctx, "admin", "admin123"); err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout() failed: %v", err)
	}

	entries, err := audit.GetEntriesForDate(clock.Now().Format("2006-01-02"))
	if err != nil {
		t.Fatalf("GetEntriesForDate() failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}

	wantActions := []string{"login_failed", "login", "logout"}
	for i, e := range entries {
		if e.Action != wantActions[i] {
			t.Errorf("entry %d action = %q, want %q", i, e.Action, wantActions[i])
		}
		if e.Scope != "scope-1" || e.IPAddress != "10.0.0.1" || e.UserAgent != "test-agent" {
			t.Errorf("entry %d request info = %+v", i, e)
		}
		if e.Username != "admin" {
			t.Errorf("entry %d username = %q", i, e.Username)
		}
	}
	if entries[0].Success || !entries[1].Success {
		t.Errorf("success flags = %v, %v", entries[0].Success, entries[1].Success)
	}
	if entries[1].Method != string(LoginMethodPassword) {
		t.Errorf("login method = %q", entries[1].Method)
	}
}

func TestAuditLogger_RecentAndSearch(t *testing.T) {
	clock := newFakeClock()
	audit := newTestAuditLogger(t, clock)

	base := clock.Now()
	for i, action := range []string{"login", "logout", "login"} {
		entry := AuditEntry{
			Timestamp: base.Add(-time.Duration(i) * 24 * time.Hour),
			Username:  "user",
			Action:    action,
			Success:   true,
		}
		if err := audit.LogEntry(entry); err != nil {
			t.Fatalf("LogEntry() failed: %v", err)
		}
	}

	recent, err := audit.GetRecentEntries(2)
	if err != nil {
		t.Fatalf("GetRecentEntries() failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent = %d, want 2", len(recent))
	}
	if !recent[0].Timestamp.After(recent[1].Timestamp) {
		t.Errorf("recent entries not newest first: %v, %v", recent[0].Timestamp, recent[1].Timestamp)
	}

	found, err := audit.SearchEntries(AuditSearchCriteria{
		StartDate: base.AddDate(0, 0, -7).Format("2006-01-02"),
		EndDate:   base.Format("2006-01-02"),
		Action:    "login",
	})
	if err != nil {
		t.Fatalf("SearchEntries() failed: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("SearchEntries(login) = %d, want 2", len(found))
	}

	failed := false
	found, err = audit.SearchEntries(AuditSearchCriteria{
		StartDate: base.AddDate(0, 0, -7).Format("2006-01-02"),
		EndDate:   base.Format("2006-01-02"),
		Success:   &failed,
	})
	if err != nil {
		t.Fatalf("SearchEntries() failed: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("SearchEntries(failed) = %d, want 0", len(found))
	}

	if _, err := audit.GetEntriesRange("yesterday", "today"); err == nil {
		t.Error("GetEntriesRange() accepted invalid dates")
	}
}

func TestAuditLogger_RotateOldLogs(t *testing.T) {
	clock := newFakeClock()
	audit := newTestAuditLogger(t, clock)

	for _, age := range []int{0, 10, 40, 100} {
		entry := AuditEntry{Timestamp: clock.Now().AddDate(0, 0, -age), Action: "login"}
		if err := audit.LogEntry(entry); err != nil {
			t.Fatalf("LogEntry() failed: %v", err)
		}
	}
	// Unrelated files in the audit directory are left alone
	stray := filepath.Join(audit.dataDir, "audit_notes.json")
	if err := os.WriteFile(stray, []byte("{}"), 0600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	removed, err := audit.RotateOldLogs(30)
	if err != nil {
		t.Fatalf("RotateOldLogs() failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("RotateOldLogs() removed %d, want 2", removed)
	}

	files, err := audit.ListLogFiles()
	if err != nil {
		t.Fatalf("ListLogFiles() failed: %v", err)
	}
	if len(files) != 3 {
		t.Errorf("ListLogFiles() = %v, want 2 daily logs and the stray file", files)
	}
}

func TestAuditLogger_ArchiveOldLogs(t *testing.T) {
	clock := newFakeClock()
	audit := newTestAuditLogger(t, clock)

	// 2025-03-14 is a Friday; 10 and 11 days back share ISO week 2025-W10
	for _, age := range []int{0, 10, 11, 60} {
		entry := AuditEntry{Timestamp: clock.Now().AddDate(0, 0, -age), Action: "login"}
		if err := audit.LogEntry(entry); err != nil {
			t.Fatalf("LogEntry() failed: %v", err)
		}
	}

	result, err := audit.ArchiveOldLogs(7, 30)
	if err != nil {
		t.Fatalf("ArchiveOldLogs() failed: %v", err)
	}
	if result.Compressed != 3 {
		t.Errorf("Compressed = %d, want 3", result.Compressed)
	}
	if result.ArchivesWritten != 2 {
		t.Errorf("ArchivesWritten = %d, want 2", result.ArchivesWritten)
	}
	// The 60 day old week is packed and then dropped as past retention
	if result.ArchivesRemoved != 1 {
		t.Errorf("ArchivesRemoved = %d, want 1", result.ArchivesRemoved)
	}

	archives, err := audit.ListArchives()
	if err != nil {
		t.Fatalf("ListArchives() failed: %v", err)
	}
	if len(archives) != 1 || filepath.Base(archives[0]) != "audit_2025-W10.tar.gz" {
		t.Errorf("ListArchives() = %v", archives)
	}

	files, err := audit.ListLogFiles()
	if err != nil {
		t.Fatalf("ListLogFiles() failed: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("ListLogFiles() = %v, want only today's log", files)
	}
}
