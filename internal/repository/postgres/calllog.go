package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dispatchline/internal/session"
)

// CallLogRepository archives finished call transcripts. It implements
// callflow.Archiver.
type CallLogRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewCallLogRepository creates the repository and ensures its table exists.
func NewCallLogRepository(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (*CallLogRepository, error) {
	r := &CallLogRepository{
		pool:   pool,
		logger: logger,
	}
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *CallLogRepository) ensureTable(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS call_logs (
			id BIGSERIAL PRIMARY KEY,
			call_sid TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL,
			turn_count INT NOT NULL,
			transcript JSONB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure call_logs table: %w", err)
	}
	return nil
}

// ArchiveCall writes one finished call's transcript. The archive is best
// effort: the caller logs failures and the call flow is unaffected.
func (r *CallLogRepository) ArchiveCall(ctx context.Context, s session.CallSession) error {
	transcript, err := json.Marshal(s.History)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = r.pool.Exec(ctx, `
		INSERT INTO call_logs (call_sid, started_at, ended_at, turn_count, transcript)
		VALUES ($1, $2, $3, $4, $5)
	`, s.CallSID, s.StartedAt, time.Now(), len(s.History), transcript)
	if err != nil {
		return fmt.Errorf("insert call log: %w", err)
	}

	r.logger.Info("call transcript archived",
		"call_sid", s.CallSID,
		"turns", len(s.History),
	)
	return nil
}
