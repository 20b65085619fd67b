// Package audit is the append-only audit trail. Entries carry identifiers,
// action names, outcome codes and counts only; never free-text record content.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/carecircle/api/internal/platform/db"
)

// Entry is one audit record.
type Entry struct {
	ID         uuid.UUID      `json:"id"`
	ActorID    uuid.UUID      `json:"actor_id"`
	CircleID   *uuid.UUID     `json:"circle_id,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Outcome    string         `json:"outcome"`
	Details    map[string]int `json:"details,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// Sink appends entries. Implementations must never update or delete.
type Sink interface {
	Append(ctx context.Context, e *Entry) error
}

func (e *Entry) stamp() {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
}

// PGSink writes to the audit_log table.
type PGSink struct {
	pool *pgxpool.Pool
}

func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

func (s *PGSink) Append(ctx context.Context, e *Entry) error {
	e.stamp()
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	_, err = db.Conn(ctx, s.pool).Exec(ctx, `
		INSERT INTO audit_log (id, actor_id, circle_id, action, entity_type, entity_id, outcome, details, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.ActorID, e.CircleID, e.Action, e.EntityType, e.EntityID, e.Outcome, details, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// LogSink writes entries as structured log lines.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Append(_ context.Context, e *Entry) error {
	e.stamp()
	evt := s.logger.Info().
		Str("audit_id", e.ID.String()).
		Str("actor_id", e.ActorID.String()).
		Str("action", e.Action).
		Str("entity_type", e.EntityType).
		Str("entity_id", e.EntityID.String()).
		Str("outcome", e.Outcome).
		Time("recorded_at", e.RecordedAt)
	if e.CircleID != nil {
		evt = evt.Str("circle_id", e.CircleID.String())
	}
	for k, v := range e.Details {
		evt = evt.Int(k, v)
	}
	evt.Msg("audit")
	return nil
}

// MultiSink appends to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, e *Entry) error {
	e.stamp()
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
