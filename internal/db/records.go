package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/taxilian/envlog/internal/model"
)

// ErrRecordNotCached is returned by GetRecord when the id is not in the cache.
var ErrRecordNotCached = errors.New("record not in local cache")

const recordColumns = `id, fecha, hora, jornada, dia, temperatura, humedad, persona, observaciones`

// ReplaceRecords swaps the cached listing for records in one transaction.
func (db *DB) ReplaceRecords(records []model.Record) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM records`); err != nil {
		return fmt.Errorf("failed to clear record cache: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO records (` + recordColumns + `, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := sqlTime(time.Now())
	for _, r := range records {
		if r.ID == 0 {
			continue
		}
		if _, err := stmt.Exec(r.ID, r.Date, r.Time, string(r.Shift), r.Day, r.Temperature, r.Humidity, r.Person, r.Notes, now); err != nil {
			return fmt.Errorf("failed to cache record %d: %w", r.ID, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO snapshots (taken_at, record_count) VALUES (?, ?)`, now, len(records)); err != nil {
		return fmt.Errorf("failed to log snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit record cache: %w", err)
	}
	return nil
}

// PutRecord inserts or replaces one cached record.
func (db *DB) PutRecord(r model.Record) error {
	if r.ID == 0 {
		return model.ErrMissingID
	}
	_, err := db.ExecRetry(`INSERT OR REPLACE INTO records (`+recordColumns+`, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Date, r.Time, string(r.Shift), r.Day, r.Temperature, r.Humidity, r.Person, r.Notes, sqlTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to cache record %d: %w", r.ID, err)
	}
	return nil
}

// RemoveRecord drops id from the cache.
func (db *DB) RemoveRecord(id int) error {
	if _, err := db.ExecRetry(`DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to uncache record %d: %w", id, err)
	}
	return nil
}

// GetRecord returns the cached record with id, or ErrRecordNotCached.
func (db *DB) GetRecord(id int) (model.Record, error) {
	row := db.QueryRow(`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, fmt.Errorf("%w: %d", ErrRecordNotCached, id)
	}
	if err != nil {
		return model.Record{}, fmt.Errorf("failed to read record %d: %w", id, err)
	}
	return r, nil
}

// ListRecords returns the cached records, newest reading first.
func (db *DB) ListRecords() ([]model.Record, error) {
	rows, err := db.QueryRetry(`SELECT ` + recordColumns + ` FROM records ORDER BY fecha DESC, hora DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// LastSnapshot returns when the cache was last replaced. ok is false if never.
func (db *DB) LastSnapshot() (taken time.Time, ok bool, err error) {
	var raw string
	err = db.QueryRow(`SELECT taken_at FROM snapshots ORDER BY id DESC LIMIT 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read snapshot time: %w", err)
	}
	taken, err = parseSQLTime(raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return taken, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (model.Record, error) {
	var r model.Record
	var shift string
	var notes sql.NullString
	err := s.Scan(&r.ID, &r.Date, &r.Time, &shift, &r.Day, &r.Temperature, &r.Humidity, &r.Person, &notes)
	if err != nil {
		return model.Record{}, err
	}
	r.Shift = model.Shift(shift)
	r.Notes = notes.String
	return r, nil
}

// parseSQLTime accepts the layouts modernc's driver hands back for DATETIME columns.
func parseSQLTime(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}
