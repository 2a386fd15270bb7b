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

	"csguard/internal/engine/rules"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

const defaultBusyTimeout = 2 * time.Second

func Open(path string) (*Store, error) {
	return OpenWithTimeout(path, defaultBusyTimeout)
}

// OpenWithTimeout opens the history at path, waiting up to busyTimeout for
// a lock held by another connection.
func OpenWithTimeout(path string, busyTimeout time.Duration) (*Store, error) {
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}
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
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath, busyTimeout.Milliseconds())
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

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun stores run with its per-rule counts and violations in one
// transaction. Saving the same run ID again replaces it.
func (s *Store) SaveRun(ctx context.Context, run Run, violations []rules.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id must not be empty")
	}
	if strings.TrimSpace(run.ProjectKey) == "" {
		run.ProjectKey = "default"
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	commitTS := ""
	if !run.CommitTimestamp.IsZero() {
		commitTS = run.CommitTimestamp.UTC().Format(time.RFC3339Nano)
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
  id, project_key, started_at_utc, duration_ms, commit_hash, commit_ts_utc,
  file_count, failed_count, violation_count
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			run.ID,
			run.ProjectKey,
			run.StartedAt.UTC().Format(time.RFC3339Nano),
			run.Duration.Milliseconds(),
			run.CommitHash,
			commitTS,
			run.FileCount,
			run.FailedCount,
			run.ViolationCount,
		); err != nil {
			return err
		}

		for rule, count := range run.RuleCounts {
			if _, err := tx.ExecContext(ctx, `INSERT INTO run_rule_counts (run_id, rule, count) VALUES (?, ?, ?)`, run.ID, rule, count); err != nil {
				return err
			}
		}

		if len(violations) > 0 {
			stmt, err := tx.PrepareContext(ctx, `
INSERT INTO violations (run_id, rule, path, line, col, element, message)
VALUES (?, ?, ?, ?, ?, ?, ?)
`)
			if err != nil {
				return err
			}
			defer stmt.Close()
			for _, v := range violations {
				if _, err := stmt.ExecContext(ctx, run.ID, string(v.Rule), v.Path, v.Line, v.Column, v.Element, v.Message); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	})
}

// LoadRuns returns the runs of projectKey started at or after since, oldest
// first.
func (s *Store) LoadRuns(ctx context.Context, projectKey string, since time.Time) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectKey = strings.TrimSpace(projectKey)
	if projectKey == "" {
		projectKey = "default"
	}

	query := `
SELECT id, project_key, started_at_utc, duration_ms, commit_hash, commit_ts_utc,
  file_count, failed_count, violation_count
FROM runs
WHERE project_key = ?`
	args := []any{projectKey}
	if !since.IsZero() {
		query += " AND started_at_utc >= ?"
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY started_at_utc ASC, id ASC"

	var runs []Run
	err := s.withRetry("load runs", func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		runs = runs[:0]
		for rows.Next() {
			run, err := scanRun(rows)
			if err != nil {
				return err
			}
			runs = append(runs, run)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	for i := range runs {
		counts, err := s.ruleCounts(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].RuleCounts = counts
	}
	return runs, nil
}

// Violations returns the violations stored for runID in report order.
func (s *Store) Violations(ctx context.Context, runID string) ([]rules.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []rules.Violation
	err := s.withRetry("load violations", func() error {
		rows, err := s.db.QueryContext(ctx, `
SELECT rule, path, line, col, element, message
FROM violations
WHERE run_id = ?
ORDER BY path ASC, line ASC, col ASC, id ASC
`, runID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var (
				v    rules.Violation
				rule string
			)
			if err := rows.Scan(&rule, &v.Path, &v.Line, &v.Column, &v.Element, &v.Message); err != nil {
				return fmt.Errorf("scan violation row: %w", err)
			}
			v.Rule = rules.RuleID(rule)
			out = append(out, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Prune keeps the newest keep runs of projectKey and deletes the rest.
func (s *Store) Prune(ctx context.Context, projectKey string, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep <= 0 {
		return 0, nil
	}
	var removed int64
	err := s.withRetry("prune runs", func() error {
		res, err := s.db.ExecContext(ctx, `
DELETE FROM runs
WHERE project_key = ? AND id NOT IN (
  SELECT id FROM runs WHERE project_key = ? ORDER BY started_at_utc DESC, id DESC LIMIT ?
)
`, projectKey, projectKey, keep)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func (s *Store) ruleCounts(ctx context.Context, runID string) (map[string]int, error) {
	counts := map[string]int{}
	err := s.withRetry("load rule counts", func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT rule, count FROM run_rule_counts WHERE run_id = ?`, runID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				rule  string
				count int
			)
			if err := rows.Scan(&rule, &count); err != nil {
				return fmt.Errorf("scan rule count row: %w", err)
			}
			counts[rule] = count
		}
		return rows.Err()
	})
	return counts, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run         Run
		startedRaw  string
		commitTSRaw string
		durationMS  int64
	)
	if err := row.Scan(
		&run.ID,
		&run.ProjectKey,
		&startedRaw,
		&durationMS,
		&run.CommitHash,
		&commitTSRaw,
		&run.FileCount,
		&run.FailedCount,
		&run.ViolationCount,
	); err != nil {
		return Run{}, fmt.Errorf("scan run row: %w", err)
	}

	started, err := time.Parse(time.RFC3339Nano, startedRaw)
	if err != nil {
		return Run{}, fmt.Errorf("parse run timestamp %q: %w", startedRaw, err)
	}
	run.StartedAt = started.UTC()
	run.Duration = time.Duration(durationMS) * time.Millisecond

	if commitTSRaw != "" {
		commitTS, err := time.Parse(time.RFC3339Nano, commitTSRaw)
		if err != nil {
			return Run{}, fmt.Errorf("parse commit timestamp %q: %w", commitTSRaw, err)
		}
		run.CommitTimestamp = commitTS.UTC()
	}
	return run, nil
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

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
