package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	coreerrors "j2k/internal/core/errors"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Store persists run history in a single sqlite file. It implements
// ports.HistoryStore.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun records run, its conflicts and its decision snapshot in one
// transaction. Saving an existing ID replaces it.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.ID = strings.TrimSpace(run.ID)
	if run.ID == "" {
		return fmt.Errorf("run id must not be empty")
	}
	if run.Started.IsZero() {
		run.Started = time.Now().UTC()
	}
	blob, err := encodeDecisions(run.Decisions)
	if err != nil {
		return err
	}

	return s.withRetry("save run", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO runs (
  id, started_utc, duration_ms, root, group_count, file_count, conflict_count,
  diagnostic_count, failed, decisions
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.Started.UTC().Format(time.RFC3339Nano),
			run.Duration.Milliseconds(),
			run.Root,
			run.Groups,
			run.Files,
			run.Conflicts,
			run.Diagnostics,
			run.Failed,
			blob,
		); err != nil {
			return err
		}
		for i, c := range run.ConflictRecords {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO conflicts (run_id, seq, group_name, symbol, before_shape, after_shape, reason)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
				run.ID, i, c.Group, c.Symbol, c.Before, c.After, c.Reason,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

const runColumns = `id, started_utc, duration_ms, root, group_count, file_count, conflict_count, diagnostic_count, failed`

// Runs returns the most recent runs first, without conflicts or decisions.
// A limit of zero or less returns every run.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_utc DESC, id ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows *sql.Rows
	err := s.withRetry("load runs", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// Run loads one run with its conflicts and decision snapshot. A unique ID
// prefix is accepted.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id = strings.TrimSpace(id)
	if id == "" {
		return Run{}, coreerrors.New(coreerrors.CodeValidationError, "run id must not be empty")
	}

	var rows *sql.Rows
	err := s.withRetry("load run", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, `SELECT `+runColumns+`, decisions FROM runs WHERE id = ? OR id LIKE ? ORDER BY id LIMIT 2`, id, id+"%")
		return qErr
	})
	if err != nil {
		return Run{}, err
	}
	var (
		matches []Run
		blobs   [][]byte
	)
	for rows.Next() {
		r, blob, err := scanRunWithBlob(rows)
		if err != nil {
			rows.Close()
			return Run{}, err
		}
		matches, blobs = append(matches, r), append(blobs, blob)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterate run rows: %w", err)
	}

	pick := -1
	for i, r := range matches {
		if r.ID == id {
			pick = i
		}
	}
	switch {
	case len(matches) == 0:
		return Run{}, coreerrors.AddContext(coreerrors.New(coreerrors.CodeNotFound, "no such run"), "run", id)
	case pick < 0 && len(matches) > 1:
		return Run{}, coreerrors.AddContext(coreerrors.New(coreerrors.CodeValidationError, "run id prefix is ambiguous"), "run", id)
	case pick < 0:
		pick = 0
	}
	run, blob := matches[pick], blobs[pick]

	if run.Decisions, err = decodeDecisions(blob); err != nil {
		return Run{}, err
	}
	if run.ConflictRecords, err = s.conflicts(ctx, run.ID); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *Store) conflicts(ctx context.Context, runID string) ([]ConflictRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT group_name, symbol, before_shape, after_shape, reason
FROM conflicts WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("load conflicts: %w", err)
	}
	defer rows.Close()

	var out []ConflictRecord
	for rows.Next() {
		var c ConflictRecord
		if err := rows.Scan(&c.Group, &c.Symbol, &c.Before, &c.After, &c.Reason); err != nil {
			return nil, fmt.Errorf("scan conflict row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conflict rows: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, extra ...any) (Run, error) {
	var (
		run        Run
		startedRaw string
		durationMS int64
	)
	dest := append([]any{
		&run.ID,
		&startedRaw,
		&durationMS,
		&run.Root,
		&run.Groups,
		&run.Files,
		&run.Conflicts,
		&run.Diagnostics,
		&run.Failed,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Run{}, fmt.Errorf("scan run row: %w", err)
	}
	started, err := time.Parse(time.RFC3339Nano, startedRaw)
	if err != nil {
		return Run{}, fmt.Errorf("parse run timestamp %q: %w", startedRaw, err)
	}
	run.Started = started.UTC()
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}

func scanRunWithBlob(row scanner) (Run, []byte, error) {
	var blob []byte
	run, err := scanRun(row, &blob)
	return run, blob, err
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
