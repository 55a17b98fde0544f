package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rl1809/shoe-store/internal/core/cart"
	"github.com/rl1809/shoe-store/internal/port"
)

// CartService keeps cart snapshots between requests of one session. The
// checkout itself never depends on it.
type CartService struct {
	cache   port.CacheRepository
	timeout time.Duration
}

func NewCartService(cache port.CacheRepository, timeout time.Duration) *CartService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CartService{cache: cache, timeout: timeout}
}

func (s *CartService) Load(ctx context.Context, sessionID string) (*cart.Store, error) {
	if sessionID == "" {
		return nil, invalid("cart session is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entries, err := s.cache.LoadCart(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return cart.Restore(entries), nil
}

func (s *CartService) Save(ctx context.Context, sessionID string, store *cart.Store) error {
	if sessionID == "" {
		return invalid("cart session is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if store.Len() == 0 {
		return s.Discard(ctx, sessionID)
	}
	if err := s.cache.SaveCart(ctx, sessionID, store.Entries()); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *CartService) Discard(ctx context.Context, sessionID string) error {
	if err := s.cache.DeleteCart(ctx, sessionID); err != nil {
		return fmt.Errorf("discard cart: %w", err)
	}
	return nil
}
