package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/port"
)

type UserService struct {
	users   port.UserRepository
	access  access
	timeout time.Duration
	logger  *slog.Logger
}

func NewUserService(repos Repositories, identity port.IdentityProvider, timeout time.Duration, logger *slog.Logger) *UserService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &UserService{
		users:   repos.Users,
		access:  access{identity: identity, users: repos.Users},
		timeout: timeout,
		logger:  logger,
	}
}

// Sync records the caller on first sight with the user role. Existing users
// are returned unchanged.
func (s *UserService) Sync(ctx context.Context) (*domain.User, error) {
	ident, user, err := s.access.caller(ctx)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name := ident.Name
	if name == "" {
		name = "Unnamed User"
	}
	user = &domain.User{
		ID:           uuid.NewString(),
		Subject:      ident.Subject,
		Email:        ident.Email,
		Name:         name,
		Phone:        ident.Phone,
		ProfileImage: ident.PictureURL,
		Role:         domain.RoleUser,
		CreatedAt:    time.Now(),
	}

	err = s.users.CreateUser(ctx, *user)
	if errors.Is(err, port.ErrAlreadyExists) {
		// lost a race with a concurrent sync for the same email
		return s.users.GetUserByEmail(ctx, ident.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user synced", "user_id", user.ID, "email", user.Email)
	return user, nil
}

func (s *UserService) Current(ctx context.Context) (*domain.User, error) {
	_, user, err := s.access.caller(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}
