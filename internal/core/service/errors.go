package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/port"
)

var (
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyOrder        = errors.New("order has no lines")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnknownProduct    = errors.New("unknown product")
	ErrUnauthenticated   = errors.New("not authenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrNotFound          = port.ErrNotFound
)

// Shortage is one order line the ledger could not cover.
type Shortage struct {
	Line      domain.OrderLine `json:"line"`
	Available int              `json:"available"`
}

type StockShortageError struct {
	Shortages []Shortage
}

func (e *StockShortageError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s size %v: want %d, have %d",
			s.Line.ProductID, s.Line.Size, s.Line.Quantity, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *StockShortageError) Unwrap() error {
	return ErrInsufficientStock
}

type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindInsufficientStock
	KindConflict
	KindDuplicate
	KindBackend
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindConflict:
		return "conflict"
	case KindDuplicate:
		return "duplicate"
	default:
		return "backend"
	}
}

// KindOf classifies an error returned by this package.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrEmptyOrder), errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnknownProduct):
		return KindValidation
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrDuplicateRequest):
		return KindDuplicate
	default:
		return KindBackend
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
