package circle

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotMember = errors.New("not an active member of this circle")
	ErrReadOnly  = errors.New("circle role does not allow changes")
)

type Service struct {
	members MemberRepository
}

func NewService(members MemberRepository) *Service {
	return &Service{members: members}
}

// ActiveRole returns the actor's role in the circle, or "" when the actor
// has no active membership.
func (s *Service) ActiveRole(ctx context.Context, actorID, circleID uuid.UUID) (Role, error) {
	m, err := s.members.GetMember(ctx, circleID, actorID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if m.Status != StatusActive {
		return "", nil
	}
	return m.Role, nil
}

// RequireMember fails with ErrNotMember unless the actor is active in the circle.
func (s *Service) RequireMember(ctx context.Context, actorID, circleID uuid.UUID) (Role, error) {
	role, err := s.ActiveRole(ctx, actorID, circleID)
	if err != nil {
		return "", err
	}
	if role == "" {
		return "", ErrNotMember
	}
	return role, nil
}

// RequireWriter is RequireMember plus a write-capable role.
func (s *Service) RequireWriter(ctx context.Context, actorID, circleID uuid.UUID) (Role, error) {
	role, err := s.RequireMember(ctx, actorID, circleID)
	if err != nil {
		return "", err
	}
	if !role.CanWrite() {
		return role, ErrReadOnly
	}
	return role, nil
}
