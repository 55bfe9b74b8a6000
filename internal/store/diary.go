package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/plantbutler/internal/daykey"
)

// ErrMalformed marks a persisted value that could not be decoded.
var ErrMalformed = errors.New("store: malformed record")

// UpsertDiary stores the note for a day, replacing any previous one.
func (db *DB) UpsertDiary(ctx context.Context, day daykey.DayKey, text string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO diary_entries (day_key, text, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(day_key) DO UPDATE SET
			text       = excluded.text,
			updated_at = excluded.updated_at
	`, day.Millis(), text, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("store: upsert diary: %w", err)
	}
	return nil
}

// GetDiary returns the note for a day and whether a record exists.
func (db *DB) GetDiary(ctx context.Context, day daykey.DayKey) (string, bool, error) {
	var text string
	err := db.conn.QueryRowContext(ctx, `SELECT text FROM diary_entries WHERE day_key = ?`, day.Millis()).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get diary: %w", err)
	}
	return text, true, nil
}

// DeleteDiary removes the record for a day.
func (db *DB) DeleteDiary(ctx context.Context, day daykey.DayKey) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM diary_entries WHERE day_key = ?`, day.Millis()); err != nil {
		return fmt.Errorf("store: delete diary: %w", err)
	}
	return nil
}

// AllDiary returns every stored note keyed by day.
func (db *DB) AllDiary(ctx context.Context) (map[daykey.DayKey]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT day_key, text FROM diary_entries`)
	if err != nil {
		return nil, fmt.Errorf("store: all diary: %w", err)
	}
	defer rows.Close()

	out := make(map[daykey.DayKey]string)
	for rows.Next() {
		var k int64
		var text string
		if err := rows.Scan(&k, &text); err != nil {
			return nil, err
		}
		out[daykey.DayKey(k)] = text
	}
	return out, rows.Err()
}

// PutPhotoRefs replaces the ordered reference list for a day.
// An empty list deletes the day's row so empty lists are never persisted.
func (db *DB) PutPhotoRefs(ctx context.Context, day daykey.DayKey, refs []string) error {
	if len(refs) == 0 {
		if _, err := db.conn.ExecContext(ctx, `DELETE FROM photo_days WHERE day_key = ?`, day.Millis()); err != nil {
			return fmt.Errorf("store: delete photo refs: %w", err)
		}
		return nil
	}
	payload, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("store: encode photo refs: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO photo_days (day_key, refs, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(day_key) DO UPDATE SET
			refs       = excluded.refs,
			updated_at = excluded.updated_at
	`, day.Millis(), string(payload), toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("store: put photo refs: %w", err)
	}
	return nil
}

// GetPhotoRefs returns the list for a day; nil when absent.
func (db *DB) GetPhotoRefs(ctx context.Context, day daykey.DayKey) ([]string, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx, `SELECT refs FROM photo_days WHERE day_key = ?`, day.Millis()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get photo refs: %w", err)
	}
	refs, err := decodeRefs(raw)
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// AllPhotoRefs bulk-loads every day's list. Rows that fail to decode are
// skipped with a warning rather than failing the whole load.
func (db *DB) AllPhotoRefs(ctx context.Context) (map[daykey.DayKey][]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT day_key, refs FROM photo_days`)
	if err != nil {
		return nil, fmt.Errorf("store: all photo refs: %w", err)
	}
	defer rows.Close()

	out := make(map[daykey.DayKey][]string)
	for rows.Next() {
		var k int64
		var raw string
		if err := rows.Scan(&k, &raw); err != nil {
			return nil, err
		}
		refs, err := decodeRefs(raw)
		if err != nil {
			slog.Warn("store: skipping malformed photo row", slog.Int64("day_key", k), slog.String("error", err.Error()))
			continue
		}
		if len(refs) > 0 {
			out[daykey.DayKey(k)] = refs
		}
	}
	return out, rows.Err()
}

func decodeRefs(raw string) ([]string, error) {
	var refs []string
	if err := json.Unmarshal([]byte(raw), &refs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return refs, nil
}
