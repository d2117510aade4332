package db

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// MaxBackups is the maximum number of backups to keep
	MaxBackups = 10
	// BackupDir is the subdirectory for backups next to the database file
	BackupDir = "backups"

	backupPrefix = "envlog-"
	backupSuffix = ".db"
)

// BackupInfo contains information about a backup file
type BackupInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// BackupPath returns the backups directory for the database at dbPath.
func BackupPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), BackupDir)
}

// Backup writes a consistent snapshot of the database into the backups
// directory and prunes old ones. Returns the path to the backup file.
func (db *DB) Backup() (string, error) {
	backupDir := BackupPath(db.path)
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	// Millisecond timestamp plus random suffix so rapid backups never collide.
	timestamp := time.Now().Format("2006-01-02T15-04-05.000")
	randomBytes := make([]byte, 4)
	_, _ = rand.Read(randomBytes)
	backupFile := filepath.Join(backupDir, fmt.Sprintf("%s%s-%s%s", backupPrefix, timestamp, hex.EncodeToString(randomBytes), backupSuffix))

	if _, err := db.Exec(`VACUUM INTO ?`, backupFile); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}

	if err := pruneBackups(backupDir, MaxBackups); err != nil {
		log.Printf("warning: failed to prune old backups: %v", err)
	}

	return backupFile, nil
}

// ListBackups returns the backups for the database at dbPath, newest first.
func ListBackups(dbPath string) ([]BackupInfo, error) {
	return listBackupsIn(BackupPath(dbPath))
}

func listBackupsIn(backupDir string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() || !isBackupName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Path:    filepath.Join(backupDir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	// Names embed the timestamp, which breaks mtime ties.
	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].ModTime.Equal(backups[j].ModTime) {
			return backups[i].ModTime.After(backups[j].ModTime)
		}
		return backups[i].Name > backups[j].Name
	})

	return backups, nil
}

func isBackupName(name string) bool {
	return strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, backupSuffix)
}

// pruneBackups removes old backups, keeping only the newest 'keep' backups.
func pruneBackups(backupDir string, keep int) error {
	backups, err := listBackupsIn(backupDir)
	if err != nil {
		return err
	}
	if len(backups) <= keep {
		return nil
	}
	for _, b := range backups[keep:] {
		if err := os.Remove(b.Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", b.Name, err)
		}
	}
	return nil
}

// Restore copies a backup file over the database at dbPath.
// The database connection should be closed before calling this.
func Restore(backupPath, dbPath string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup file not found: %w", err)
	}

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}

	if err := os.WriteFile(dbPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write database: %w", err)
	}

	// Stale WAL files would replay the pre-restore state over the copy.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", dbPath+suffix, err)
		}
	}

	return nil
}
