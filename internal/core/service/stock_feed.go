package service

import (
	"log/slog"
	"sync"

	"github.com/rl1809/shoe-store/internal/core/domain"
)

// StockFeed queues committed stock changes for the publishing workers.
type StockFeed struct {
	mu     sync.RWMutex
	ch     chan domain.StockUpdate
	closed bool
	logger *slog.Logger
}

func NewStockFeed(queueSize int, logger *slog.Logger) *StockFeed {
	return &StockFeed{
		ch:     make(chan domain.StockUpdate, queueSize),
		logger: logger,
	}
}

// Push never blocks a request. A full queue drops the update; watchers
// catch up on the next change or by reading the ledger.
func (f *StockFeed) Push(update domain.StockUpdate) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return
	}
	select {
	case f.ch <- update:
	default:
		f.logger.Warn("stock feed full, dropping update", "product_id", update.ProductID)
	}
}

func (f *StockFeed) Updates() <-chan domain.StockUpdate {
	return f.ch
}

func (f *StockFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		f.closed = true
		close(f.ch)
	}
}
