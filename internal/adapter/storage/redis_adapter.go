package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/shoe-store/internal/core/domain"
)

const (
	cartKeyPrefix         = "cart:"
	stockChannelPrefix    = "stock:"
	defaultIdempotencyTTL = 24 * time.Hour
	defaultCartTTL        = 7 * 24 * time.Hour
)

type RedisAdapter struct {
	client         *redis.Client
	idempotencyTTL time.Duration
	cartTTL        time.Duration
	logger         *slog.Logger
}

func NewRedisAdapter(client *redis.Client, cartTTL time.Duration, logger *slog.Logger) *RedisAdapter {
	if cartTTL <= 0 {
		cartTTL = defaultCartTTL
	}
	return &RedisAdapter{
		client:         client,
		idempotencyTTL: defaultIdempotencyTTL,
		cartTTL:        cartTTL,
		logger:         logger,
	}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, r.idempotencyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// SaveCart overwrites the session's snapshot and restarts its TTL.
func (r *RedisAdapter) SaveCart(ctx context.Context, sessionID string, entries []domain.CartEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return r.client.Set(ctx, cartKeyPrefix+sessionID, raw, r.cartTTL).Err()
}

func (r *RedisAdapter) LoadCart(ctx context.Context, sessionID string) ([]domain.CartEntry, error) {
	raw, err := r.client.Get(ctx, cartKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return []domain.CartEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []domain.CartEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return entries, nil
}

func (r *RedisAdapter) DeleteCart(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, cartKeyPrefix+sessionID).Err()
}

func (r *RedisAdapter) PublishStock(ctx context.Context, update domain.StockUpdate) error {
	raw, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encode stock update: %w", err)
	}
	return r.client.Publish(ctx, stockChannelPrefix+update.ProductID, raw).Err()
}

// SubscribeStock relays updates until ctx is done, then closes the channel.
// Malformed messages are logged and skipped.
func (r *RedisAdapter) SubscribeStock(ctx context.Context, productID string) (<-chan domain.StockUpdate, error) {
	sub := r.client.Subscribe(ctx, stockChannelPrefix+productID)
	// wait for the subscription to be confirmed so no publish is missed
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe stock %s: %w", productID, err)
	}

	out := make(chan domain.StockUpdate)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var update domain.StockUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					r.logger.Warn("dropping malformed stock update", "channel", msg.Channel, "err", err)
					continue
				}
				select {
				case out <- update:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
