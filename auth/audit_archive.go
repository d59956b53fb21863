package auth

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArchiveResult summarizes one archive pass
type ArchiveResult struct {
	Compressed      int `json:"compressed"`
	ArchivesWritten int `json:"archives_written"`
	ArchivesRemoved int `json:"archives_removed"`
}

// ArchiveOldLogs packs daily logs older than compressAfterDays into weekly
// tar.gz archives under <audit>/archive and deletes archives whose week ended
// more than retentionDays ago.
func (l *AuditLogger) ArchiveOldLogs(compressAfterDays, retentionDays int) (ArchiveResult, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	var result ArchiveResult
	now := l.now()
	compressBefore := now.AddDate(0, 0, -compressAfterDays)
	deleteBefore := now.AddDate(0, 0, -retentionDays)

	archiveDir := filepath.Join(l.dataDir, "archive")
	if err := os.MkdirAll(archiveDir, 0700); err != nil {
		return result, fmt.Errorf("failed to create archive directory: %w", err)
	}

	files, err := l.listLogFiles()
	if err != nil {
		return result, err
	}

	// Group by ISO week
	weekly := make(map[string][]string)
	for _, file := range files {
		fileDate, ok := logFileDate(file)
		if !ok || !fileDate.Before(compressBefore) {
			continue
		}
		year, week := fileDate.ISOWeek()
		key := fmt.Sprintf("%d-W%02d", year, week)
		weekly[key] = append(weekly[key], file)
	}

	for key, dailyFiles := range weekly {
		archivePath := filepath.Join(archiveDir, fmt.Sprintf("audit_%s.tar.gz", key))
		if err := appendToArchive(archivePath, dailyFiles); err != nil {
			l.logger.WithError(err).WithField("week", key).Warn("Failed to write weekly audit archive")
			continue
		}
		result.ArchivesWritten++
		for _, file := range dailyFiles {
			if err := os.Remove(file); err != nil {
				l.logger.WithError(err).WithField("file", file).Warn("Failed to remove archived audit log")
				continue
			}
			result.Compressed++
		}
	}

	archives, err := filepath.Glob(filepath.Join(archiveDir, "audit_*-W*.tar.gz"))
	if err != nil {
		return result, fmt.Errorf("failed to list weekly archives: %w", err)
	}
	for _, archive := range archives {
		weekEnd, ok := archiveWeekEnd(archive)
		if !ok || !weekEnd.Before(deleteBefore) {
			continue
		}
		if err := os.Remove(archive); err != nil {
			return result, fmt.Errorf("failed to remove weekly archive: %w", err)
		}
		result.ArchivesRemoved++
	}

	return result, nil
}

// ListArchives returns the weekly archive files
func (l *AuditLogger) ListArchives() ([]string, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return filepath.Glob(filepath.Join(l.dataDir, "archive", "audit_*-W*.tar.gz"))
}

// logFileDate parses the day out of audit_YYYY-MM-DD.json
func logFileDate(path string) (time.Time, bool) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "audit_") || !strings.HasSuffix(base, ".json") {
		return time.Time{}, false
	}
	date, err := time.Parse(auditDateLayout, strings.TrimSuffix(strings.TrimPrefix(base, "audit_"), ".json"))
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// archiveWeekEnd returns the Monday after the archive's ISO week
func archiveWeekEnd(path string) (time.Time, bool) {
	base := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "audit_"), ".tar.gz")
	var year, week int
	if _, err := fmt.Sscanf(base, "%d-W%d", &year, &week); err != nil {
		return time.Time{}, false
	}
	// Jan 4th is always in ISO week 1
	jan4 := time.Date(year, 1, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset+(week-1)*7)
	return monday.AddDate(0, 0, 7), true
}

// appendToArchive writes files into archivePath, keeping members of an existing archive
func appendToArchive(archivePath string, files []string) error {
	tmpPath := archivePath + ".tmp"
	outFile, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	gzWriter := gzip.NewWriter(outFile)
	tarWriter := tar.NewWriter(gzWriter)

	writeErr := func() error {
		if err := copyArchiveMembers(tarWriter, archivePath); err != nil {
			return err
		}
		for _, file := range files {
			if err := addFileToTar(tarWriter, file); err != nil {
				return fmt.Errorf("failed to add file %s to archive: %w", file, err)
			}
		}
		if err := tarWriter.Close(); err != nil {
			return err
		}
		return gzWriter.Close()
	}()
	closeErr := outFile.Close()

	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return writeErr
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return closeErr
	}
	return os.Rename(tmpPath, archivePath)
}

func copyArchiveMembers(tarWriter *tar.Writer, archivePath string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer in.Close()

	gzReader, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("failed to read existing archive: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read existing archive: %w", err)
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}
		if _, err := io.Copy(tarWriter, tarReader); err != nil {
			return err
		}
	}
}

// addFileToTar adds a single file to a tar archive
func addFileToTar(tarWriter *tar.Writer, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	// Use only the base name in the archive
	header.Name = filepath.Base(filename)

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tarWriter, file)
	return err
}
