package handoff

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carecircle/api/internal/platform/db"
)

type handoffRepoPG struct{ pool *pgxpool.Pool }

func NewHandoffRepoPG(pool *pgxpool.Pool) HandoffRepository {
	return &handoffRepoPG{pool: pool}
}

const handoffCols = `id, circle_id, patient_id, type, title, summary, status, published_at, source_id, created_by, created_at`

func scanHandoff(row pgx.Row) (*Handoff, error) {
	var h Handoff
	err := row.Scan(&h.ID, &h.CircleID, &h.PatientID, &h.Type, &h.Title, &h.Summary, &h.Status,
		&h.PublishedAt, &h.SourceID, &h.CreatedBy, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &h, err
}

func (r *handoffRepoPG) Create(ctx context.Context, h *Handoff) error {
	h.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO handoff (id, circle_id, patient_id, type, title, summary, status, published_at, source_id, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`,
		h.ID, h.CircleID, h.PatientID, h.Type, h.Title, h.Summary, h.Status, h.PublishedAt, h.SourceID, h.CreatedBy).
		Scan(&h.CreatedAt)
}

func (r *handoffRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Handoff, error) {
	return scanHandoff(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+handoffCols+` FROM handoff WHERE id = $1`, id))
}

func (r *handoffRepoPG) ListByCircle(ctx context.Context, circleID uuid.UUID, limit, offset int) ([]*Handoff, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM handoff WHERE circle_id = $1`, circleID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, `SELECT `+handoffCols+` FROM handoff WHERE circle_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, circleID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Handoff
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, h)
	}
	return items, total, rows.Err()
}

func (r *handoffRepoPG) CreateRevision(ctx context.Context, rev *Revision) error {
	rev.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO handoff_revision (id, handoff_id, revision_number, language, summary, payload, created_by)
		SELECT $1, $2, COALESCE(MAX(revision_number), 0) + 1, $3, $4, $5, $6
		FROM handoff_revision WHERE handoff_id = $2
		RETURNING revision_number, created_at`,
		rev.ID, rev.HandoffID, rev.Language, rev.Summary, rev.Payload, rev.CreatedBy).
		Scan(&rev.RevisionNumber, &rev.CreatedAt)
}

func (r *handoffRepoPG) ListRevisions(ctx context.Context, handoffID uuid.UUID) ([]*Revision, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, handoff_id, revision_number, language, summary, payload, created_by, created_at
		FROM handoff_revision WHERE handoff_id = $1 ORDER BY revision_number`, handoffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var revs []*Revision
	for rows.Next() {
		var rev Revision
		if err := rows.Scan(&rev.ID, &rev.HandoffID, &rev.RevisionNumber, &rev.Language, &rev.Summary,
			&rev.Payload, &rev.CreatedBy, &rev.CreatedAt); err != nil {
			return nil, err
		}
		revs = append(revs, &rev)
	}
	return revs, rows.Err()
}
