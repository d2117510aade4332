package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/taxilian/envlog/internal/auth"
)

func TestPin_SetChangeClear(t *testing.T) {
	setupCLI(t)

	out := mustRun(t, "pin", "clear")
	if !strings.Contains(out, "No operator PIN set") {
		t.Errorf("unexpected output: %q", out)
	}

	if _, err := run(t, "pin", "set", "12"); !errors.Is(err, auth.ErrWeakPIN) {
		t.Errorf("expected weak PIN, got %v", err)
	}
	mustRun(t, "pin", "set", "1234")

	if _, err := run(t, "pin", "set", "5678"); !errors.Is(err, auth.ErrPINRequired) {
		t.Errorf("changing the PIN without the current one: got %v", err)
	}
	if _, err := run(t, "pin", "set", "5678", "--pin", "0000"); !errors.Is(err, auth.ErrInvalidPIN) {
		t.Errorf("changing the PIN with a wrong one: got %v", err)
	}
	mustRun(t, "pin", "set", "5678", "--pin", "1234")

	if _, err := run(t, "pin", "clear", "--pin", "1234"); !errors.Is(err, auth.ErrInvalidPIN) {
		t.Errorf("old PIN should no longer work, got %v", err)
	}
	out = mustRun(t, "pin", "clear", "--pin", "5678")
	if !strings.Contains(out, "Operator PIN cleared") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestBackup(t *testing.T) {
	_, dbPath := setupCLI(t)
	mustRun(t, "pin", "clear") // creates the database

	out := mustRun(t, "backups")
	if !strings.Contains(out, "No backups found") {
		t.Errorf("unexpected output: %q", out)
	}

	out = mustRun(t, "backup")
	if !strings.Contains(out, "Backup created:") {
		t.Errorf("unexpected output: %q", out)
	}
	out = mustRun(t, "backup", "--quiet")
	if out != "" {
		t.Errorf("--quiet printed %q", out)
	}

	custom := filepath.Join(t.TempDir(), "copy.db")
	mustRun(t, "backup", custom)
	if _, err := os.Stat(custom); err != nil {
		t.Errorf("custom backup missing: %v", err)
	}

	out = mustRun(t, "backups")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "BACKUP") {
		t.Errorf("expected header and 2 backups, got:\n%s", out)
	}
	if !strings.Contains(out, "envlog-") {
		t.Errorf("unexpected backup names:\n%s", out)
	}
	entries, err := os.ReadDir(filepath.Join(filepath.Dir(dbPath), "backups"))
	if err != nil || len(entries) != 2 {
		t.Errorf("expected 2 files next to the database, got %d (%v)", len(entries), err)
	}
}

func TestRestore_RequiresPINAndReplacesDatabase(t *testing.T) {
	setupCLI(t)
	mustRun(t, "pin", "clear")

	backup := filepath.Join(t.TempDir(), "before-pin.db")
	mustRun(t, "backup", backup)
	mustRun(t, "pin", "set", "1234")

	if _, err := run(t, "restore", backup); !errors.Is(err, auth.ErrPINRequired) {
		t.Fatalf("expected PIN required, got %v", err)
	}
	if _, err := run(t, "restore", filepath.Join(t.TempDir(), "missing.db")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected missing backup error, got %v", err)
	}

	out := mustRun(t, "restore", backup, "--pin", "1234")
	if !strings.Contains(out, "Current database backed up to:") || !strings.Contains(out, "Restored from: "+backup) {
		t.Errorf("unexpected output:\n%s", out)
	}

	// The backup predates the PIN.
	out = mustRun(t, "pin", "clear")
	if !strings.Contains(out, "No operator PIN set") {
		t.Errorf("restore should bring back the database without a PIN, got %q", out)
	}
}
