package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/port"
)

type ledgerEntry struct {
	sizes   []domain.SizeStock
	version int
}

// stockLedger is a checkout's view of the authoritative stock counts. Each
// product is read at most once per transaction and written back once.
type stockLedger struct {
	tx      port.StockTx
	entries map[string]*ledgerEntry
	order   []string
}

func newStockLedger(tx port.StockTx) *stockLedger {
	return &stockLedger{
		tx:      tx,
		entries: make(map[string]*ledgerEntry),
	}
}

func (l *stockLedger) readStock(ctx context.Context, productID string) ([]domain.SizeStock, error) {
	if e, ok := l.entries[productID]; ok {
		return e.sizes, nil
	}

	sizes, version, err := l.tx.LockSizes(ctx, productID)
	if errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("read stock %s: %w", productID, err)
	}

	l.entries[productID] = &ledgerEntry{sizes: domain.CloneSizes(sizes), version: version}
	l.order = append(l.order, productID)
	return l.entries[productID].sizes, nil
}

// decrement takes quantity off one size entry. It returns the stock that was
// available and false, leaving the entry untouched, when the entry is missing
// or would go below zero.
func (l *stockLedger) decrement(productID string, size float64, quantity int) (int, bool) {
	e, ok := l.entries[productID]
	if !ok {
		return 0, false
	}
	for i := range e.sizes {
		if e.sizes[i].Size != size {
			continue
		}
		if e.sizes[i].Stock < quantity {
			return e.sizes[i].Stock, false
		}
		e.sizes[i].Stock -= quantity
		return e.sizes[i].Stock + quantity, true
	}
	return 0, false
}

// flush writes every product read through the ledger back in read order.
func (l *stockLedger) flush(ctx context.Context) ([]domain.StockUpdate, error) {
	now := time.Now()
	updates := make([]domain.StockUpdate, 0, len(l.order))

	for _, id := range l.order {
		e := l.entries[id]
		if err := l.tx.WriteSizes(ctx, id, e.sizes, e.version); err != nil {
			return nil, fmt.Errorf("write stock %s: %w", id, err)
		}
		updates = append(updates, domain.StockUpdate{
			ProductID: id,
			Sizes:     domain.CloneSizes(e.sizes),
			At:        now,
		})
	}
	return updates, nil
}

// applyOrder resolves every product the order touches and decrements each
// line. Shortages are collected across all lines before failing.
// Rows are locked in id order so concurrent checkouts never wait on each
// other in a cycle.
func (l *stockLedger) applyOrder(ctx context.Context, order domain.Order) error {
	ids := order.ProductIDs()
	slices.Sort(ids)
	for _, id := range ids {
		if _, err := l.readStock(ctx, id); err != nil {
			return err
		}
	}

	var shortages []Shortage
	for _, line := range order.Lines {
		available, ok := l.decrement(line.ProductID, line.Size, line.Quantity)
		if !ok {
			shortages = append(shortages, Shortage{Line: line, Available: available})
		}
	}
	if len(shortages) > 0 {
		return &StockShortageError{Shortages: shortages}
	}
	return nil
}
