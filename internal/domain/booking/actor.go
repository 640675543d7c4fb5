package booking

import "github.com/google/uuid"

// Role identifies the kind of party acting on a booking.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleSystem   Role = "system"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleClient, RoleProvider, RoleSystem:
		return true
	}
	return false
}

// Actor is the authenticated party performing an operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// SystemActor is used for automated transitions such as expiry.
var SystemActor = Actor{ID: uuid.Nil, Role: RoleSystem}

// CanView reports whether the actor may read the booking.
func (a Actor) CanView(b *Booking) bool {
	switch a.Role {
	case RoleAdmin, RoleSystem:
		return true
	case RoleClient:
		return b.ClientID() == a.ID
	case RoleProvider:
		if b.IsAssignedTo(a.ID) {
			return true
		}
		return b.IsAvailable()
	}
	return false
}
