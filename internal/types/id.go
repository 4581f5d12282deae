// README: Identifier and coordinate value objects.
package types

import "github.com/google/uuid"

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string {
	return string(id)
}

type Point struct {
	Lat float64
	Lng float64
}

// Role of the caller as carried in the auth token claims.
type Role string

const (
	RoleUser      Role = "user"
	RoleSender    Role = "sender"
	RoleTraveller Role = "traveller"
	RoleAdmin     Role = "admin"
)
