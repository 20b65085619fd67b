package circle

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carecircle/api/internal/platform/db"
)

type memberRepoPG struct{ pool *pgxpool.Pool }

func NewMemberRepoPG(pool *pgxpool.Pool) MemberRepository {
	return &memberRepoPG{pool: pool}
}

func (r *memberRepoPG) GetMember(ctx context.Context, circleID, userID uuid.UUID) (*Member, error) {
	var m Member
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT circle_id, user_id, role, status, created_at
		FROM circle_member WHERE circle_id = $1 AND user_id = $2`, circleID, userID).
		Scan(&m.CircleID, &m.UserID, &m.Role, &m.Status, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
