package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vdt/internal/models"

	_ "modernc.org/sqlite"
)

const DefaultPath = "history.db"

// DefaultListLimit is used by List when limit is not positive.
const DefaultListLimit = 20

// Store keeps a record of every check in SQLite.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (creating if needed) the history database at path and applies
// the migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history: database path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA busy_timeout = 5000`, `PRAGMA foreign_keys = ON`} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %q: %w", pragma, err)
		}
	}
	if err := NewMigrator(db).Up(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return NewStore(db), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a check and its codes in one transaction.
func (s *Store) Record(ctx context.Context, rec models.CheckRecord) (err error) {
	if rec.ID == "" {
		return errors.New("history: check id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx record check: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO checks(check_id, checked_at, outcome, code_count)
		VALUES(?, ?, ?, ?)
	`, rec.ID, rec.CheckedAt.UnixMilli(), string(rec.Outcome), len(rec.Entries))
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO check_codes(check_id, position, code, description)
		VALUES(?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert codes: %w", err)
	}
	defer stmt.Close()

	for i, e := range rec.Entries {
		if _, err = stmt.ExecContext(ctx, rec.ID, i, string(e.Code), e.Description); err != nil {
			return fmt.Errorf("insert code %s: %w", e.Code, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit record check: %w", err)
	}
	return nil
}

// List returns the most recent checks, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]models.CheckRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT check_id, checked_at, outcome
		FROM checks
		ORDER BY checked_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}

	var records []models.CheckRecord
	for rows.Next() {
		var (
			rec       models.CheckRecord
			checkedAt int64
			outcome   string
		)
		if err := rows.Scan(&rec.ID, &checkedAt, &outcome); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan check: %w", err)
		}
		rec.CheckedAt = time.UnixMilli(checkedAt)
		rec.Outcome = models.Outcome(outcome)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate checks: %w", err)
	}
	rows.Close()

	// the single connection must be free before the per-check queries
	for i := range records {
		entries, err := s.entries(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Entries = entries
	}
	return records, nil
}

func (s *Store) entries(ctx context.Context, checkID string) ([]models.DTCEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, description
		FROM check_codes
		WHERE check_id = ?
		ORDER BY position
	`, checkID)
	if err != nil {
		return nil, fmt.Errorf("query codes of %s: %w", checkID, err)
	}
	defer rows.Close()

	var entries []models.DTCEntry
	for rows.Next() {
		var (
			code string
			e    models.DTCEntry
		)
		if err := rows.Scan(&code, &e.Description); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		e.Code = models.TroubleCode(code)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
