package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"blackjack-lite/apps/server/internal/codec"
	"blackjack-lite/card"
)

const (
	ModeNone     = "none"
	ModeSQLite   = "sqlite"
	ModePostgres = "postgres"

	defaultRecentLimit = 20
	maxRecentLimit     = 200
)

var ErrNotFound = errors.New("not found")

// Service archives finished rounds. Record failures never affect play; the
// table logs them and moves on.
type Service interface {
	Close() error
	RecordRound(ctx context.Context, rec RoundRecord) error
	ListRecent(ctx context.Context, limit int) ([]RoundRecord, error)
	GetRound(ctx context.Context, roundID string) (RoundRecord, error)
}

type PlayerRecord struct {
	ID      uint64   `json:"id"`
	Name    string   `json:"name"`
	Cards   []string `json:"cards"`
	Score   int      `json:"score"`
	Outcome string   `json:"outcome"`
}

type RoundRecord struct {
	RoundID      string         `json:"round_id"`
	Round        uint32         `json:"round"`
	PlayedAt     time.Time      `json:"played_at"`
	DealerCards  []string       `json:"dealer_cards"`
	DealerScore  int            `json:"dealer_score"`
	DealerBusted bool           `json:"dealer_busted"`
	Aborted      bool           `json:"aborted"`
	Reason       string         `json:"reason,omitempty"`
	Players      []PlayerRecord `json:"players"`
	Tape         []string       `json:"tape,omitempty"`

	// EnvelopeB64 is the protobuf form of the same round.
	EnvelopeB64 string `json:"envelope_b64,omitempty"`
}

// NewRoundRecord flattens a round for storage and attaches its protobuf
// envelope.
func NewRoundRecord(env codec.RoundEnvelope) (RoundRecord, error) {
	if env.Result == nil {
		return RoundRecord{}, fmt.Errorf("nil round result")
	}
	if env.PlayedAt.IsZero() {
		env.PlayedAt = time.Now()
	}
	res := env.Result
	rec := RoundRecord{
		RoundID:      env.RoundID,
		Round:        res.Round,
		PlayedAt:     env.PlayedAt.UTC(),
		DealerCards:  card.CardList(res.DealerCards).Tokens(),
		DealerScore:  res.DealerScore,
		DealerBusted: res.DealerBusted,
		Aborted:      res.Aborted,
		Reason:       res.Reason,
		Players:      make([]PlayerRecord, 0, len(res.PlayerResults)),
		Tape:         append([]string(nil), env.Tape...),
	}
	for _, pr := range res.PlayerResults {
		rec.Players = append(rec.Players, PlayerRecord{
			ID:      pr.ID,
			Name:    pr.Name,
			Cards:   card.CardList(pr.Cards).Tokens(),
			Score:   pr.Score,
			Outcome: pr.Outcome.String(),
		})
	}
	b64, err := codec.EncodeRound(env)
	if err != nil {
		return RoundRecord{}, err
	}
	rec.EnvelopeB64 = b64
	return rec, nil
}

type Options struct {
	Mode        string
	SQLitePath  string
	DatabaseURL string
}

// New opens the backend named by opts.Mode and reports the mode in use.
func New(opts Options) (Service, string, error) {
	mode := strings.ToLower(strings.TrimSpace(opts.Mode))
	switch mode {
	case "", ModeNone, "memory":
		return &noopService{}, ModeNone, nil
	case ModeSQLite, "local":
		service, err := NewSQLiteService(opts.SQLitePath)
		if err != nil {
			return nil, "", err
		}
		return service, ModeSQLite, nil
	case ModePostgres:
		service, err := NewPostgresService(opts.DatabaseURL)
		if err != nil {
			return nil, "", err
		}
		return service, ModePostgres, nil
	}
	return nil, "", fmt.Errorf("unknown ledger mode %q", opts.Mode)
}

type noopService struct{}

func (n *noopService) Close() error { return nil }

func (n *noopService) RecordRound(_ context.Context, _ RoundRecord) error { return nil }

func (n *noopService) ListRecent(_ context.Context, _ int) ([]RoundRecord, error) {
	return []RoundRecord{}, nil
}

func (n *noopService) GetRound(_ context.Context, _ string) (RoundRecord, error) {
	return RoundRecord{}, ErrNotFound
}

type PostgresService struct {
	db *sql.DB
}

func NewPostgresService(dsn string) (*PostgresService, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("empty postgres database url")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS round_history (
    round_id TEXT PRIMARY KEY,
    round_no BIGINT NOT NULL,
    played_at_ms BIGINT NOT NULL,
    aborted BOOLEAN NOT NULL DEFAULT FALSE,
    reason TEXT NOT NULL DEFAULT '',
    summary_json TEXT NOT NULL,
    envelope_b64 TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_round_history_played_at ON round_history (played_at_ms DESC);
`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure postgres ledger schema: %w", err)
	}
	return &PostgresService{db: db}, nil
}

func (s *PostgresService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresService) RecordRound(ctx context.Context, rec RoundRecord) error {
	summary, err := encodeSummary(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO round_history (round_id, round_no, played_at_ms, aborted, reason, summary_json, envelope_b64)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (round_id) DO NOTHING
`, rec.RoundID, int64(rec.Round), rec.PlayedAt.UTC().UnixMilli(), rec.Aborted, rec.Reason, summary, rec.EnvelopeB64)
	return err
}

func (s *PostgresService) ListRecent(ctx context.Context, limit int) ([]RoundRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT summary_json, envelope_b64
FROM round_history
ORDER BY played_at_ms DESC, round_no DESC
LIMIT $1
`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (s *PostgresService) GetRound(ctx context.Context, roundID string) (RoundRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT summary_json, envelope_b64 FROM round_history WHERE round_id = $1
`, roundID)
	return scanRecord(row)
}

func encodeSummary(rec RoundRecord) (string, error) {
	if strings.TrimSpace(rec.RoundID) == "" {
		return "", fmt.Errorf("empty round id")
	}
	// the envelope has its own column
	rec.EnvelopeB64 = ""
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal round summary: %w", err)
	}
	return string(raw), nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (RoundRecord, error) {
	var summary, envelope string
	if err := row.Scan(&summary, &envelope); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RoundRecord{}, ErrNotFound
		}
		return RoundRecord{}, err
	}
	var rec RoundRecord
	if err := json.Unmarshal([]byte(summary), &rec); err != nil {
		return RoundRecord{}, fmt.Errorf("decode round summary: %w", err)
	}
	rec.EnvelopeB64 = envelope
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]RoundRecord, error) {
	defer rows.Close()
	items := make([]RoundRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}
