package circle

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOwner       Role = "OWNER"
	RoleAdmin       Role = "ADMIN"
	RoleContributor Role = "CONTRIBUTOR"
	RoleViewer      Role = "VIEWER"
)

// CanWrite reports whether the role may create or modify circle records.
func (r Role) CanWrite() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleContributor:
		return true
	}
	return false
}

const (
	StatusActive  = "ACTIVE"
	StatusInvited = "INVITED"
	StatusRemoved = "REMOVED"
)

// Member maps to the circle_member table.
type Member struct {
	CircleID  uuid.UUID `db:"circle_id" json:"circleId"`
	UserID    uuid.UUID `db:"user_id" json:"userId"`
	Role      Role      `db:"role" json:"role"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
