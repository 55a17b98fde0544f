package auth

import (
	"context"

	"github.com/rl1809/shoe-store/internal/core/domain"
)

type identityKey struct{}

func WithIdentity(ctx context.Context, ident *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, ident)
}

func FromContext(ctx context.Context) (*domain.Identity, bool) {
	ident, ok := ctx.Value(identityKey{}).(*domain.Identity)
	return ident, ok && ident != nil
}

// ContextProvider serves identities placed on the context by the transport
// middleware.
type ContextProvider struct{}

func (ContextProvider) Identity(ctx context.Context) (*domain.Identity, bool) {
	return FromContext(ctx)
}
