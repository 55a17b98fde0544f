package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/port"
)

type Repositories struct {
	Shoes  port.ShoeRepository
	Orders port.OrderRepository
	Users  port.UserRepository
}

type OrderConfig struct {
	// MaxAttempts bounds how often a checkout is retried after losing a race.
	MaxAttempts int
	BaseBackoff time.Duration
	// Timeout applies to each persistence round trip.
	Timeout time.Duration
	Pricing Pricing
}

type CheckoutRequest struct {
	RequestID     string
	Contact       domain.Contact
	PaymentMethod domain.PaymentMethod
	CouponCode    string
	Lines         []domain.OrderLine
}

// OrderPatch carries the only fields an order may change after creation.
type OrderPatch struct {
	Status        *domain.OrderStatus
	PaymentStatus *domain.PaymentStatus
	DeliveryDate  *time.Time
}

type Quote struct {
	Lines []domain.OrderLine `json:"lines"`
	Totals
}

type OrderService struct {
	repos  Repositories
	cache  port.CacheRepository
	access access
	feed   *StockFeed
	cfg    OrderConfig
	logger *slog.Logger
}

func NewOrderService(repos Repositories, cache port.CacheRepository, identity port.IdentityProvider,
	feed *StockFeed, cfg OrderConfig, logger *slog.Logger) *OrderService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &OrderService{
		repos:  repos,
		cache:  cache,
		access: access{identity: identity, users: repos.Users},
		feed:   feed,
		cfg:    cfg,
		logger: logger,
	}
}

// Submit places an order and takes its lines out of stock in one
// transaction. On any error nothing is persisted.
func (s *OrderService) Submit(ctx context.Context, req CheckoutRequest) (*domain.Order, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyOrder
	}
	if err := validateCheckout(&req); err != nil {
		return nil, err
	}

	totals, err := s.cfg.Pricing.totals(req.Lines, req.CouponCode)
	if err != nil {
		return nil, err
	}

	var idempotencyKey string
	if req.RequestID != "" {
		idempotencyKey = fmt.Sprintf("checkout:%s:%s", req.Contact.Email, req.RequestID)
		ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, ErrDuplicateRequest
		}
	}

	now := time.Now()
	order := domain.Order{
		ID:            uuid.NewString(),
		Contact:       req.Contact,
		OrderedAt:     now,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        domain.OrderStatusProcessing,
		Lines:         append([]domain.OrderLine(nil), req.Lines...),
		Subtotal:      totals.Subtotal,
		Shipping:      totals.Shipping,
		Discount:      totals.Discount,
		Total:         totals.Total,
		UpdatedAt:     now,
	}

	updates, err := s.placeWithRetry(ctx, order)
	if err != nil {
		if idempotencyKey != "" {
			if relErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), idempotencyKey); relErr != nil {
				s.logger.Error("release idempotency key", "key", idempotencyKey, "err", relErr)
			}
		}
		if KindOf(err) == KindBackend {
			s.logger.Error("checkout failed", "order_id", order.ID, "err", err)
		}
		return nil, err
	}

	for _, u := range updates {
		s.feed.Push(u)
	}
	s.logger.Info("order placed", "order_id", order.ID, "lines", len(order.Lines), "total", order.Total.String())
	return &order, nil
}

func (s *OrderService) placeWithRetry(ctx context.Context, order domain.Order) ([]domain.StockUpdate, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := backoff(ctx, s.cfg.BaseBackoff, attempt-1); err != nil {
				return nil, err
			}
		}

		updates, err := s.place(ctx, order)
		if err == nil {
			return updates, nil
		}
		if !errors.Is(err, port.ErrVersionConflict) {
			return nil, err
		}

		lastErr = err
		s.logger.Warn("checkout lost a stock race, retrying", "order_id", order.ID, "attempt", attempt+1)
	}
	return nil, fmt.Errorf("%w: %v", ErrConflict, lastErr)
}

func (s *OrderService) place(ctx context.Context, order domain.Order) ([]domain.StockUpdate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var updates []domain.StockUpdate
	err := s.repos.Orders.InTx(ctx, func(tx port.StockTx) error {
		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("persist order: %w", err)
		}

		ledger := newStockLedger(tx)
		if err := ledger.applyOrder(ctx, order); err != nil {
			return err
		}

		var err error
		updates, err = ledger.flush(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updates, nil
}

// List returns every order to admins and the caller's own orders to anyone
// else.
func (s *OrderService) List(ctx context.Context) ([]domain.Order, error) {
	ident, user, err := s.access.caller(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	email := ident.Email
	if user.IsAdmin() {
		email = ""
	}
	orders, err := s.repos.Orders.ListOrders(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// Get hides orders of other shoppers behind ErrNotFound.
func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	ident, user, err := s.access.caller(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	order, err := s.repos.Orders.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !user.IsAdmin() && !strings.EqualFold(order.Contact.Email, ident.Email) {
		return nil, ErrNotFound
	}
	return order, nil
}

func (s *OrderService) Delete(ctx context.Context, id string) error {
	ident, err := s.access.requireAdmin(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.repos.Orders.DeleteOrder(ctx, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	s.logger.Info("order deleted", "order_id", id, "by", ident.Email)
	return nil
}

// Advance moves an order forward. Status only moves along the progression;
// reaching delivered stamps the delivery date when none is given.
func (s *OrderService) Advance(ctx context.Context, id string, patch OrderPatch) (*domain.Order, error) {
	if _, err := s.access.requireAdmin(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	order, err := s.repos.Orders.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	if patch.Status != nil {
		if !order.Status.CanAdvanceTo(*patch.Status) {
			return nil, invalid("cannot move order from %s to %s", order.Status, *patch.Status)
		}
		order.Status = *patch.Status
	}
	if patch.PaymentStatus != nil {
		if !patch.PaymentStatus.Valid() {
			return nil, invalid("unknown payment status %q", *patch.PaymentStatus)
		}
		order.PaymentStatus = *patch.PaymentStatus
	}
	if patch.DeliveryDate != nil {
		d := *patch.DeliveryDate
		order.DeliveryDate = &d
	}
	if order.Status == domain.OrderStatusDelivered && order.DeliveryDate == nil {
		now := time.Now()
		order.DeliveryDate = &now
	}
	order.UpdatedAt = time.Now()

	if err := s.repos.Orders.UpdateOrderProgress(ctx, *order); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return order, nil
}

// Quote prices cart entries at today's effective prices. The returned lines
// are what Submit expects.
func (s *OrderService) Quote(ctx context.Context, entries []domain.CartEntry, coupon string) (*Quote, error) {
	if len(entries) == 0 {
		return &Quote{Lines: []domain.OrderLine{}}, nil
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ProductID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	shoes, err := s.repos.Shoes.QueryShoes(ctx, domain.ShoeQuery{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	prices := make(map[string]decimal.Decimal, len(shoes))
	for _, sh := range shoes {
		prices[sh.ID] = sh.EffectivePrice()
	}

	lines := make([]domain.OrderLine, 0, len(entries))
	for _, e := range entries {
		price, ok := prices[e.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, e.ProductID)
		}
		lines = append(lines, domain.OrderLine{
			ProductID: e.ProductID,
			Price:     price,
			Size:      e.Size,
			Quantity:  e.Count,
		})
	}

	totals, err := s.cfg.Pricing.totals(lines, coupon)
	if err != nil {
		return nil, err
	}
	return &Quote{Lines: lines, Totals: totals}, nil
}

func validateCheckout(req *CheckoutRequest) error {
	req.Contact.Email = strings.TrimSpace(req.Contact.Email)
	if req.Contact.Email == "" {
		return invalid("contact email is required")
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodCOD
	}
	if !req.PaymentMethod.Valid() {
		return invalid("unknown payment method %q", req.PaymentMethod)
	}
	for i, l := range req.Lines {
		if l.ProductID == "" {
			return invalid("line %d: product id is required", i)
		}
		if l.Quantity <= 0 {
			return invalid("line %d: quantity must be positive", i)
		}
		if l.Price.IsNegative() {
			return invalid("line %d: price must not be negative", i)
		}
		if !wholeCents(l.Price) {
			return invalid("line %d: price has more than %d decimal places", i, moneyPlaces)
		}
	}
	return nil
}

func backoff(ctx context.Context, base time.Duration, attempt int) error {
	exp := base * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Int64N(int64(exp/2) + 1))

	t := time.NewTimer(exp + jitter)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
