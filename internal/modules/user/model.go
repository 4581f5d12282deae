// README: User profile as seen by the marketplace core (identity comes from the auth provider).
package user

import (
	"time"

	"carryhub/internal/errs"
	"carryhub/internal/types"
)

type User struct {
	ID          types.ID
	Name        string
	Phone       string
	Email       *string
	Role        types.Role
	DeviceToken string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var (
	ErrNotFound       = errs.New(errs.ErrNotFound, "user_not_found", "user not found")
	ErrPhoneTaken     = errs.New(errs.ErrConflict, "phone_taken", "phone number already registered")
	ErrEmailTaken     = errs.New(errs.ErrConflict, "email_taken", "email already registered")
	ErrInvalidProfile = errs.New(errs.ErrValidation, "invalid_profile", "name and phone are required")
)
