package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/rl1809/shoe-store/internal/port"
)

// PublishLoop drains the feed into the notifier until the feed is closed.
// Several loops may share one feed.
func PublishLoop(id int, feed *StockFeed, notifier port.StockNotifier, timeout time.Duration, logger *slog.Logger) {
	for update := range feed.Updates() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)

		if err := notifier.PublishStock(ctx, update); err != nil {
			logger.Error("publish stock update failed", "worker", id, "product_id", update.ProductID, "err", err)
		} else {
			logger.Debug("published stock update", "worker", id, "product_id", update.ProductID)
		}

		cancel()
	}
}
