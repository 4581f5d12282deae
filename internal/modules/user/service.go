// README: User service; profile registration on first sign-in and device token refresh.
package user

import (
	"context"
	"strings"
	"time"

	"carryhub/internal/types"
)

type Repository interface {
	Upsert(ctx context.Context, u *User) error
	Get(ctx context.Context, id types.ID) (*User, error)
	DeviceToken(ctx context.Context, id types.ID) (string, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type RegisterCommand struct {
	UserID      types.ID
	Name        string
	Phone       string
	Email       string
	DeviceToken string
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*User, error) {
	name := strings.TrimSpace(cmd.Name)
	phone := strings.TrimSpace(cmd.Phone)
	if cmd.UserID == "" || name == "" || phone == "" {
		return nil, ErrInvalidProfile
	}
	now := time.Now()
	u := &User{
		ID:          cmd.UserID,
		Name:        name,
		Phone:       phone,
		Role:        types.RoleUser,
		DeviceToken: cmd.DeviceToken,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if email := strings.TrimSpace(strings.ToLower(cmd.Email)); email != "" {
		u.Email = &email
	}
	if err := s.repo.Upsert(ctx, u); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, u.ID)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*User, error) {
	return s.repo.Get(ctx, id)
}
