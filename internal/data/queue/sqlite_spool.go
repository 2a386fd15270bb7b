package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"csguard/internal/core/ports"

	_ "modernc.org/sqlite"
)

const (
	sqliteDriverName = "sqlite"
	payloadVersion   = 1
)

var _ ports.WriteSpoolPort = (*SQLiteSpool)(nil)

// SQLiteSpool persists history writes that failed so a later writer pass,
// or the next process, can replay them.
type SQLiteSpool struct {
	db         *sql.DB
	projectKey string
}

type spoolPayload struct {
	Version int                `json:"version"`
	Request ports.WriteRequest `json:"request"`
}

func OpenSQLiteSpool(path string, projectKey string) (*SQLiteSpool, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("spool path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("spool path %q is a directory", cleanPath)
	}
	if dir := filepath.Dir(cleanPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create spool directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open spool sqlite %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping spool sqlite %q: %w", cleanPath, err)
	}
	if err := migrateSpoolSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	key := strings.TrimSpace(projectKey)
	if key == "" {
		key = "default"
	}
	return &SQLiteSpool{db: db, projectKey: key}, nil
}

func (s *SQLiteSpool) Enqueue(req ports.WriteRequest) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("spool not initialized")
	}
	raw, err := json.Marshal(spoolPayload{Version: payloadVersion, Request: req})
	if err != nil {
		return fmt.Errorf("marshal spool payload: %w", err)
	}
	now := time.Now().UTC().UnixMilli()
	if _, err := s.db.Exec(`
INSERT INTO history_spool (project_key, run_id, payload, next_attempt_at, created_at)
VALUES (?, ?, ?, ?, ?)
`, s.projectKey, req.Run.ID, raw, now, now); err != nil {
		return fmt.Errorf("spool run %s: %w", req.Run.ID, err)
	}
	return nil
}

// DequeueBatch returns rows whose retry time has come, oldest first. Rows
// stay in the spool until acknowledged.
func (s *SQLiteSpool) DequeueBatch(ctx context.Context, maxItems int) ([]ports.SpoolRow, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("spool not initialized")
	}
	if maxItems <= 0 {
		maxItems = 1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, payload, attempts
FROM history_spool
WHERE project_key = ? AND next_attempt_at <= ?
ORDER BY id ASC
LIMIT ?
`, s.projectKey, time.Now().UTC().UnixMilli(), maxItems)
	if err != nil {
		return nil, fmt.Errorf("dequeue spool batch: %w", err)
	}
	defer rows.Close()

	out := make([]ports.SpoolRow, 0, maxItems)
	for rows.Next() {
		var (
			row ports.SpoolRow
			raw []byte
		)
		if err := rows.Scan(&row.ID, &raw, &row.Attempts); err != nil {
			return nil, fmt.Errorf("scan spool row: %w", err)
		}
		var payload spoolPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode spool payload id=%d: %w", row.ID, err)
		}
		if payload.Version != payloadVersion {
			return nil, fmt.Errorf("spool payload id=%d has unsupported version %d", row.ID, payload.Version)
		}
		row.Request = payload.Request
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spool rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteSpool) Ack(ctx context.Context, ids []int64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("spool not initialized")
	}
	return s.inTx(ctx, "ack", func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM history_spool WHERE project_key = ? AND id = ?`, s.projectKey, id); err != nil {
				return fmt.Errorf("ack spool row %d: %w", id, err)
			}
		}
		return nil
	})
}

// Nack bumps the attempt count of rows and defers them to nextAttemptAt.
func (s *SQLiteSpool) Nack(ctx context.Context, rows []ports.SpoolRow, nextAttemptAt time.Time, lastErr string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("spool not initialized")
	}
	next := nextAttemptAt.UTC().UnixMilli()
	return s.inTx(ctx, "nack", func(tx *sql.Tx) error {
		for _, row := range rows {
			if _, err := tx.ExecContext(ctx, `
UPDATE history_spool
SET attempts = ?, next_attempt_at = ?, last_error = ?
WHERE project_key = ? AND id = ?
`, row.Attempts+1, next, lastErr, s.projectKey, row.ID); err != nil {
				return fmt.Errorf("nack spool row %d: %w", row.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteSpool) PendingCount(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("spool not initialized")
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM history_spool WHERE project_key = ?`, s.projectKey).Scan(&count); err != nil {
		return 0, fmt.Errorf("count spool rows: %w", err)
	}
	return count, nil
}

func (s *SQLiteSpool) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteSpool) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin spool %s tx: %w", op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit spool %s tx: %w", op, err)
	}
	return nil
}
