package port

import (
	"context"

	"github.com/rl1809/shoe-store/internal/core/domain"
)

type IdentityProvider interface {
	// Identity returns the caller's verified identity, or false when unauthenticated
	Identity(ctx context.Context) (*domain.Identity, bool)
}

type BlobResolver interface {
	PublicURL(ctx context.Context, ref string) (string, error)
}
