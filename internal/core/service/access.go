package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/port"
)

// access resolves the caller of a request into an identity and, when the
// caller has been synced, a stored user with a role.
type access struct {
	identity port.IdentityProvider
	users    port.UserRepository
}

func (a access) caller(ctx context.Context) (*domain.Identity, *domain.User, error) {
	ident, ok := a.identity.Identity(ctx)
	if !ok || ident == nil || ident.Email == "" {
		return nil, nil, ErrUnauthenticated
	}

	user, err := a.users.GetUserByEmail(ctx, ident.Email)
	if errors.Is(err, port.ErrNotFound) {
		return ident, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}
	return ident, user, nil
}

func (a access) requireAdmin(ctx context.Context) (*domain.Identity, error) {
	ident, user, err := a.caller(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrForbidden
	}
	return ident, nil
}
