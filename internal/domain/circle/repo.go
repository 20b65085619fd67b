package circle

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("circle member not found")

type MemberRepository interface {
	GetMember(ctx context.Context, circleID, userID uuid.UUID) (*Member, error)
}
