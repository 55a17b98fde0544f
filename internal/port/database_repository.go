package port

import (
	"context"
	"errors"

	"github.com/rl1809/shoe-store/internal/core/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrVersionConflict means a concurrent writer won; the caller may retry.
	ErrVersionConflict = errors.New("version conflict")
)

type ShoeRepository interface {
	GetShoe(ctx context.Context, id string) (*domain.Shoe, error)

	QueryShoes(ctx context.Context, q domain.ShoeQuery) ([]domain.Shoe, error)

	// ListShoesAfter returns up to limit shoes ordered by id, starting after afterID.
	ListShoesAfter(ctx context.Context, afterID string, limit int) ([]domain.Shoe, error)

	DistinctShoeValues(ctx context.Context, field domain.ShoeField) ([]string, error)

	CreateShoe(ctx context.Context, shoe domain.Shoe) error

	// UpdateShoe writes every mutable field with a version check for optimistic locking
	UpdateShoe(ctx context.Context, shoe domain.Shoe) error

	DeleteShoe(ctx context.Context, id string) error
}

// StockTx is the unit of work a checkout runs in. Nothing is visible to other
// callers until the enclosing InTx returns nil.
type StockTx interface {
	InsertOrder(ctx context.Context, order domain.Order) error

	// LockSizes reads a product's size list and holds it until the transaction ends
	LockSizes(ctx context.Context, productID string) (sizes []domain.SizeStock, version int, err error)

	// WriteSizes replaces a product's size list if its version is unchanged
	WriteSizes(ctx context.Context, productID string, sizes []domain.SizeStock, version int) error
}

type OrderRepository interface {
	InTx(ctx context.Context, fn func(tx StockTx) error) error

	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// ListOrders returns every order when email is empty
	ListOrders(ctx context.Context, email string) ([]domain.Order, error)

	// UpdateOrderProgress persists status, payment status and delivery date only
	UpdateOrderProgress(ctx context.Context, order domain.Order) error

	DeleteOrder(ctx context.Context, id string) error
}

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	CreateUser(ctx context.Context, user domain.User) error
}
