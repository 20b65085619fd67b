package careshift

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carecircle/api/internal/platform/db"
)

type shiftRepoPG struct{ pool *pgxpool.Pool }

func NewShiftRepoPG(pool *pgxpool.Pool) ShiftRepository {
	return &shiftRepoPG{pool: pool}
}

const shiftCols = `id, circle_id, patient_id, assignee_id, shift_date, type, status, note, source_id, created_by, created_at`

func (r *shiftRepoPG) Create(ctx context.Context, s *Shift) error {
	s.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO care_shift (id, circle_id, patient_id, assignee_id, shift_date, type, status, note, source_id, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`,
		s.ID, s.CircleID, s.PatientID, s.AssigneeID, s.ShiftDate, s.Type, s.Status, s.Note, s.SourceID, s.CreatedBy).
		Scan(&s.CreatedAt)
}

func (r *shiftRepoPG) ListByCircle(ctx context.Context, circleID uuid.UUID, from, to *time.Time, limit, offset int) ([]*Shift, int, error) {
	where := ` WHERE circle_id = $1`
	args := []interface{}{circleID}
	if from != nil {
		args = append(args, *from)
		where += ` AND shift_date >= $` + strconv.Itoa(len(args))
	}
	if to != nil {
		args = append(args, *to)
		where += ` AND shift_date <= $` + strconv.Itoa(len(args))
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM care_shift`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := conn.Query(ctx, `SELECT `+shiftCols+` FROM care_shift`+where+
		` ORDER BY shift_date, created_at LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Shift
	for rows.Next() {
		var s Shift
		if err := rows.Scan(&s.ID, &s.CircleID, &s.PatientID, &s.AssigneeID, &s.ShiftDate, &s.Type,
			&s.Status, &s.Note, &s.SourceID, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &s)
	}
	return items, total, rows.Err()
}
