package binder

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carecircle/api/internal/platform/db"
)

type itemRepoPG struct{ pool *pgxpool.Pool }

func NewItemRepoPG(pool *pgxpool.Pool) ItemRepository {
	return &itemRepoPG{pool: pool}
}

const itemCols = `id, circle_id, patient_id, type, title, content, is_active, created_by, created_at, updated_at`

func (r *itemRepoPG) scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.CircleID, &it.PatientID, &it.Type, &it.Title, &it.Content,
		&it.IsActive, &it.CreatedBy, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &it, err
}

func (r *itemRepoPG) Create(ctx context.Context, it *Item) error {
	it.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO binder_item (id, circle_id, patient_id, type, title, content, is_active, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		it.ID, it.CircleID, it.PatientID, it.Type, it.Title, it.Content, it.IsActive, it.CreatedBy).
		Scan(&it.CreatedAt, &it.UpdatedAt)
}

func (r *itemRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	return r.scanItem(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+itemCols+` FROM binder_item WHERE id = $1`, id))
}

func (r *itemRepoPG) ListByCircle(ctx context.Context, circleID uuid.UUID, f ListFilter, limit, offset int) ([]*Item, int, error) {
	where := ` WHERE circle_id = $1 AND is_active`
	args := []interface{}{circleID}
	if f.PatientID != uuid.Nil {
		args = append(args, f.PatientID)
		where += ` AND patient_id = $` + strconv.Itoa(len(args))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		where += ` AND type = $` + strconv.Itoa(len(args))
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM binder_item`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := conn.Query(ctx, `SELECT `+itemCols+` FROM binder_item`+where+
		` ORDER BY type, title LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		it, err := r.scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}
