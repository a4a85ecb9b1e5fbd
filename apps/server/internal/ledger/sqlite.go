package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const DefaultSQLitePath = ":memory:"

type SQLiteService struct {
	db *sql.DB
}

func NewSQLiteService(dbPath string) (*SQLiteService, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		dbPath = DefaultSQLitePath
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// :memory: is per connection, keep exactly one
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteLedgerSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteService{db: db}, nil
}

func ensureSQLiteLedgerSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS round_history (
    round_id TEXT PRIMARY KEY,
    round_no INTEGER NOT NULL,
    played_at_ms INTEGER NOT NULL,
    aborted INTEGER NOT NULL DEFAULT 0,
    reason TEXT NOT NULL DEFAULT '',
    summary_json TEXT NOT NULL,
    envelope_b64 TEXT NOT NULL DEFAULT ''
)`,
		`CREATE INDEX IF NOT EXISTS idx_round_history_played_at ON round_history (played_at_ms DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure sqlite ledger schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteService) RecordRound(ctx context.Context, rec RoundRecord) error {
	summary, err := encodeSummary(rec)
	if err != nil {
		return err
	}
	aborted := 0
	if rec.Aborted {
		aborted = 1
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO round_history (round_id, round_no, played_at_ms, aborted, reason, summary_json, envelope_b64)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (round_id) DO NOTHING
`, rec.RoundID, int64(rec.Round), rec.PlayedAt.UTC().UnixMilli(), aborted, rec.Reason, summary, rec.EnvelopeB64)
	return err
}

func (s *SQLiteService) ListRecent(ctx context.Context, limit int) ([]RoundRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT summary_json, envelope_b64
FROM round_history
ORDER BY played_at_ms DESC, round_no DESC
LIMIT ?
`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (s *SQLiteService) GetRound(ctx context.Context, roundID string) (RoundRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT summary_json, envelope_b64 FROM round_history WHERE round_id = ?
`, roundID)
	return scanRecord(row)
}
