package port

import (
	"context"

	"github.com/rl1809/shoe-store/internal/core/domain"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency frees a key after a failed attempt so it can be retried
	ReleaseIdempotency(ctx context.Context, key string) error

	SaveCart(ctx context.Context, sessionID string, entries []domain.CartEntry) error

	// LoadCart returns an empty slice for unknown sessions
	LoadCart(ctx context.Context, sessionID string) ([]domain.CartEntry, error)

	DeleteCart(ctx context.Context, sessionID string) error
}

type StockNotifier interface {
	PublishStock(ctx context.Context, update domain.StockUpdate) error

	// SubscribeStock delivers updates for productID until ctx is done
	SubscribeStock(ctx context.Context, productID string) (<-chan domain.StockUpdate, error)
}
