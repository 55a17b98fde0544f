package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/port"
	"github.com/rl1809/shoe-store/internal/port/porttest"
)

func shoe(id string, price int64, sizes ...domain.SizeStock) domain.Shoe {
	return domain.Shoe{ID: id, Name: "shoe " + id, Brand: "acme", Category: "running", Price: decimal.NewFromInt(price), Sizes: sizes}
}

func line(productID string, price int64, size float64, qty int) domain.OrderLine {
	return domain.OrderLine{ProductID: productID, Price: decimal.NewFromInt(price), Size: size, Quantity: qty}
}

func checkout(lines ...domain.OrderLine) CheckoutRequest {
	return CheckoutRequest{
		Contact: domain.Contact{Name: "Ann", Email: "a@x.com"},
		Lines:   lines,
	}
}

func newOrderService(t *testing.T, store *porttest.Store, cache *porttest.Cache, identity port.IdentityProvider) (*OrderService, *StockFeed) {
	t.Helper()
	feed := NewStockFeed(100, discardLogger())
	t.Cleanup(feed.Close)
	svc := NewOrderService(reposOf(store), cache, identity, feed, OrderConfig{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		Timeout:     time.Second,
		Pricing:     DefaultPricing(),
	}, discardLogger())
	return svc, feed
}

func TestSubmit_EndToEnd(t *testing.T) {
	store := porttest.NewStore(shoe("P", 100, domain.SizeStock{Size: 9, Stock: 3}, domain.SizeStock{Size: 10, Stock: 0}))
	svc, feed := newOrderService(t, store, porttest.NewCache(), porttest.Anonymous)

	order, err := svc.Submit(context.Background(), checkout(line("P", 100, 9, 2)))
	require.NoError(t, err)

	stored, err := store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.OrderLine{line("P", 100, 9, 2)}, stored.Lines)
	assert.Equal(t, domain.OrderStatusProcessing, stored.Status)
	assert.Equal(t, domain.PaymentStatusPending, stored.PaymentStatus)
	assert.Equal(t, domain.PaymentMethodCOD, stored.PaymentMethod)

	assert.Equal(t, []domain.SizeStock{{Size: 9, Stock: 1}, {Size: 10, Stock: 0}}, store.Sizes("P"))

	select {
	case u := <-feed.Updates():
		assert.Equal(t, "P", u.ProductID)
		assert.Equal(t, []domain.SizeStock{{Size: 9, Stock: 1}, {Size: 10, Stock: 0}}, u.Sizes)
	default:
		t.Fatal("expected a stock update on the feed")
	}
}

func TestSubmit_EmptyOrderWritesNothing(t *testing.T) {
	store := porttest.NewStore(shoe("P", 100, domain.SizeStock{Size: 9, Stock: 3}))
	svc, _ := newOrderService(t, store, porttest.NewCache(), porttest.Anonymous)

	_, err := svc.Submit(context.Background(), checkout())
	assert.ErrorIs(t, err, ErrEmptyOrder)
	assert.Equal(t, KindValidation, KindOf(err))

	assert.Zero(t, store.OrderCount())
	assert.Zero(t, store.TxCount)
	assert.Equal(t, []domain.SizeStock{{Size: 9, Stock: 3}}, store.Sizes("P"))
}

func TestSubmit_FetchesEachProductOnce(t *testing.T) {
	store := porttest.NewStore(
		shoe("P", 100, domain.SizeStock{Size: 9, Stock: 5}, domain.SizeStock{Size: 10, Stock: 5}),
		shoe("Q", 50, domain.SizeStock{Size: 8, Stock: 1}),
	)
	svc, _ := newOrderService(t, store, porttest.NewCache(), porttest.Anonymous)

	_, err := svc.Submit(context.Background(), checkout(
		line("P", 100, 9, 1),
		line("Q", 50, 8, 1),
		line("P", 100, 10, 2),
	))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"P": 1, "Q": 1}, store.LockCalls)
	assert.Equal(t, 2, store.WriteCalls)
	assert.Equal(t, []domain.SizeStock{{Size: 9, Stock: 4}, {Size: 10, Stock: 3}}, store.Sizes("P"))
	assert.Equal(t, []domain.SizeStock{{Size: 8, Stock: 0}}, store.Sizes("Q"))
}

func TestSubmit_LocksProductsInIDOrder(t *testing.T) {
	store := porttest.NewStore(
		shoe("A", 10, domain.SizeStock{Size: 9, Stock: 5}),
		shoe("B", 10, domain.SizeStock{Size: 9, Stock: 5}),
		shoe("C", 10, domain.SizeStock{Size: 9, Stock: 5}),
	)
	svc, _ := newOrderService(t, store, porttest.NewCache(), porttest.Anonymous)

	_, err := svc.Submit(context.Background(), checkout(line("C", 10, 9, 1), line("A", 10, 9, 1), line("B", 10, 9, 1)))
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), checkout(line("B", 10, 9, 1), line("A", 10, 9, 1)))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "A", "B"}, store.LockOrder)
}

func TestSubmit_ShortageRejectsWholeOrder(t *testing.T) {
	store := porttest.NewStore(
		shoe("P", 100, domain.SizeStock{Size: 9, Stock: 5}),
		shoe("Q", 50, domain.SizeStock{Size: 8, Stock: 1}),
	)
	cache := porttest.NewCache()
	svc, _ := newOrderService(t, store, cache, porttest.Anonymous)

	req := checkout(line("P", 100, 9, 1), line("Q", 50, 8, 2), line("Q", 50, 11, 1))
	req.RequestID = "r1"
	_, err := svc.Submit(context.Background(), req)

	var shortage *StockShortageError
	require.ErrorAs(t, err, &shortage)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, KindInsufficientStock, KindOf(err))
	assert.Equal(t, []Shortage{
		{Line: line("Q", 50, 8, 2), Available: 1},
		{Line: line("Q", 50, 11, 1), Available: 0},
	}, shortage.Shortages)

	assert.Zero(t, store.OrderCount())
	assert.Equal(t, []domain.SizeStock{{Size: 9, Stock: 5}}, store.Sizes("P"))
	assert.Equal(t, []domain.SizeStock{{Size: 8, Stock: 1}}, store.Sizes("Q"))
	assert.Equal(t, []string{"checkout:a@x.com:r1"}, cache.Released)
}

func TestSubmit_UnknownProduct(t *testing.T) {
	store := porttest.NewStore()
	svc, _ := newOrderService(t, store, porttest.NewCache(), porttest.Anonymous)

	_, err := svc.Submit(context.Background(), checkout(line("ghost", 10, 9, 1)))
	assert.ErrorIs(t, err, ErrUnknownProduct)
	assert.Zero(t, store.OrderCount())
}

func TestSubmit_Validation(t *testing.T) {
	store := porttest.NewStore(shoe("P", 100, domain.SizeStock{Size: 9, Stock: 5}))
	svc, _ := newOrderService(t, store, porttest.NewCache(), porttest.Anonymous)

	cases := map[string]func(*CheckoutRequest){
		"missing email":   func(r *CheckoutRequest) { r.Contact.Email = "  " },
		"zero quantity":   func(r *CheckoutRequest) { r.Lines[0].Quantity = 0 },
		"negative price":  func(r *CheckoutRequest) { r.Lines[0].Price = decimal.NewFromInt(-1) },
		"sub-cent price":  func(r *CheckoutRequest) { r.Lines[0].Price = decimal.RequireFromString("19.999") },
		"missing product": func(r *CheckoutRequest) { r.Lines[0].ProductID = "" },
		"payment method":  func(r *CheckoutRequest) { r.PaymentMethod = "barter" },
		"unknown coupon":  func(r *CheckoutRequest) { r.CouponCode = "FREE" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := checkout(line("P", 100, 9, 1))
			mutate(&req)
			_, err := svc.Submit(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	assert.Zero(t, store.OrderCount())
}

func TestSubmit_CentPriceStoredExactly(t *testing.T) {
	store := porttest.NewStore(shoe("P", 100, domain.SizeStock{Size: 9, Stock: 3}))
	store.AddUser("admin@x.com", domain.RoleAdmin)
	svc, _ := newOrderService(t, store, porttest.NewCache(), porttest.As("admin@x.com"))

	req := checkout(line("P", 0, 9, 1))
	req.Lines[0].Price = decimal.RequireFromString("19.99")
	placed, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, "19.99", got.Lines[0].Price.String())
	assert.Equal(t, "29.99", got.Total.String())
	assert.True(t, got.Total.Equal(got.Total.Round(2)))
}

func TestSubmit_PriceIsSnapshot(t *testing.T) {
	store := porttest.NewStore(shoe("P", 100, domain.SizeStock{Size: 9, Stock: 3}))
	store.AddUser("admin@x.com", domain.RoleAdmin)
	svc, _ := newOrderService(t, store, porttest.NewCache(), porttest.Anonymous)

	order, err := svc.Submit(context.Background(), checkout(line("P", 100, 9, 1)))
	require.NoError(t, err)

	inv := NewInventoryService(reposOf(store), porttest.Blobs{}, porttest.As("admin@x.com"), NewStockFeed(10, discardLogger()), time.Second, discardLogger())
	_, err = inv.Update(context.Background(), "P", domain.SetPrice{Price: decimal.NewFromInt(120)})
	require.NoError(t, err)

	stored, err := store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Lines[0].Price.Equal(decimal.NewFromInt(100)))
}

func TestSubmit_Totals(t *testing.T) {
	store := porttest.NewStore(shoe("P", 100, domain.SizeStock{Size: 9, Stock: 3}))
	svc, _ := newOrderService(t, store, porttest.NewCache(), porttest.Anonymous)

	req := checkout(line("P", 100, 9, 2))
	req.CouponCode = "welcome10"
	order, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "200", order.Subtotal.String())
	assert.Equal(t, "10", order.Shipping.String())
	assert.Equal(t, "20", order.Discount.String())
	assert.Equal(t, "190", order.Total.String())
}

func TestSubmit_DuplicateRequest(t *testing.T) {
	store := porttest.NewStore(shoe("P", 100, domain.SizeStock{Size: 9, Stock: 3}))
	svc, _ := newOrderService(t, store, porttest.NewCache(), porttest.Anonymous)

	req := checkout(line("P", 100, 9, 1))
	req.RequestID = "req-1"

	_, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.Equal(t, KindDuplicate, KindOf(err))

	// Stock should only be decremented once
	assert.Equal(t, []domain.SizeStock{{Size: 9, Stock: 2}}, store.Sizes("P"))
}

func TestSubmit_RetriesAfterConflict(t *testing.T) {
	store := porttest.NewStore(shoe("P", 100, domain.SizeStock{Size: 9, Stock: 3}))
	store.Conflicts = 2
	svc, _ := newOrderService(t, store, porttest.NewCache(), porttest.Anonymous)

	_, err := svc.Submit(context.Background(), checkout(line("P", 100, 9, 1)))
	require.NoError(t, err)
	assert.Equal(t, 3, store.TxCount)
	assert.Equal(t, 1, store.OrderCount())
	assert.Equal(t, []domain.SizeStock{{Size: 9, Stock: 2}}, store.Sizes("P"))
}

func TestSubmit_ConflictAfterRetriesExhausted(t *testing.T) {
	store := porttest.NewStore(shoe("P", 100, domain.SizeStock{Size: 9, Stock: 3}))
	store.Conflicts = 10
	cache := porttest.NewCache()
	svc, _ := newOrderService(t, store, cache, porttest.Anonymous)

	req := checkout(line("P", 100, 9, 1))
	req.RequestID = "r"
	_, err := svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, 3, store.TxCount)
	assert.Zero(t, store.OrderCount())
	assert.Len(t, cache.Released, 1)
}

func TestSubmit_ConcurrentLastUnits(t *testing.T) {
	const stock, buyers = 5, 40
	store := porttest.NewStore(shoe("P", 100, domain.SizeStock{Size: 9, Stock: stock}))
	svc, _ := newOrderService(t, store, porttest.NewCache(), porttest.Anonymous)

	var success, soldOut atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := checkout(line("P", 100, 9, 1))
			req.RequestID = fmt.Sprintf("req-%d", i)
			_, err := svc.Submit(context.Background(), req)
			switch {
			case err == nil:
				success.Add(1)
			case errors.Is(err, ErrInsufficientStock):
				soldOut.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, stock, success.Load())
	assert.EqualValues(t, buyers-stock, soldOut.Load())
	assert.Equal(t, []domain.SizeStock{{Size: 9, Stock: 0}}, store.Sizes("P"))
	assert.Equal(t, stock, store.OrderCount())
}

func TestSubmit_StockNeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.IntRange(0, 10).Draw(t, "stock9")
		store := porttest.NewStore(shoe("P", 100, domain.SizeStock{Size: 9, Stock: initial}, domain.SizeStock{Size: 10, Stock: 3}))
		feed := NewStockFeed(1000, discardLogger())
		defer feed.Close()
		svc := NewOrderService(reposOf(store), porttest.NewCache(), porttest.Anonymous, feed, OrderConfig{Timeout: time.Second, Pricing: DefaultPricing()}, discardLogger())

		sold := 0
		n := rapid.IntRange(1, 20).Draw(t, "orders")
		for i := 0; i < n; i++ {
			size := rapid.SampledFrom([]float64{9, 10, 11}).Draw(t, "size")
			qty := rapid.IntRange(1, 4).Draw(t, "qty")
			_, err := svc.Submit(context.Background(), checkout(line("P", 100, size, qty)))
			if err == nil && size == 9 {
				sold += qty
			}
			if err != nil && !errors.Is(err, ErrInsufficientStock) {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, s := range store.Sizes("P") {
				if s.Stock < 0 {
					t.Fatalf("size %v went negative: %d", s.Size, s.Stock)
				}
			}
		}
		if got := store.Sizes("P")[0].Stock; got != initial-sold {
			t.Fatalf("size 9 stock %d, want %d", got, initial-sold)
		}
	})
}

func TestList_AuthorizationScoping(t *testing.T) {
	store := porttest.NewStore(shoe("P", 100, domain.SizeStock{Size: 9, Stock: 10}))
	store.AddUser("b@x.com", domain.RoleUser)
	store.AddUser("admin@x.com", domain.RoleAdmin)

	svc, _ := newOrderService(t, store, porttest.NewCache(), porttest.Anonymous)
	order, err := svc.Submit(context.Background(), checkout(line("P", 100, 9, 1)))
	require.NoError(t, err)

	asB, _ := newOrderService(t, store, porttest.NewCache(), porttest.As("b@x.com"))
	orders, err := asB.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)

	asA, _ := newOrderService(t, store, porttest.NewCache(), porttest.As("a@x.com"))
	orders, err = asA.List(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	asAdmin, _ := newOrderService(t, store, porttest.NewCache(), porttest.As("admin@x.com"))
	orders, err = asAdmin.List(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)

	_, err = svc.List(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, KindUnauthenticated, KindOf(err))
}

func TestGet_HidesOtherShoppersOrders(t *testing.T) {
	store := porttest.NewStore(shoe("P", 100, domain.SizeStock{Size: 9, Stock: 10}))
	store.AddUser("admin@x.com", domain.RoleAdmin)
	svc, _ := newOrderService(t, store, porttest.NewCache(), porttest.Anonymous)
	order, err := svc.Submit(context.Background(), checkout(line("P", 100, 9, 1)))
	require.NoError(t, err)

	asB, _ := newOrderService(t, store, porttest.NewCache(), porttest.As("b@x.com"))
	_, err = asB.Get(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	asOwner, _ := newOrderService(t, store, porttest.NewCache(), porttest.As("A@x.com"))
	got, err := asOwner.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	asAdmin, _ := newOrderService(t, store, porttest.NewCache(), porttest.As("admin@x.com"))
	_, err = asAdmin.Get(context.Background(), order.ID)
	assert.NoError(t, err)
}

func TestDelete_AdminOnly(t *testing.T) {
	store := porttest.NewStore(shoe("P", 100, domain.SizeStock{Size: 9, Stock: 10}))
	store.AddUser("a@x.com", domain.RoleUser)
	store.AddUser("admin@x.com", domain.RoleAdmin)
	svc, _ := newOrderService(t, store, porttest.NewCache(), porttest.Anonymous)
	order, err := svc.Submit(context.Background(), checkout(line("P", 100, 9, 1)))
	require.NoError(t, err)

	err = svc.Delete(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	owner, _ := newOrderService(t, store, porttest.NewCache(), porttest.As("a@x.com"))
	err = owner.Delete(context.Background(), order.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 1, store.OrderCount())

	admin, _ := newOrderService(t, store, porttest.NewCache(), porttest.As("admin@x.com"))
	require.NoError(t, admin.Delete(context.Background(), order.ID))
	assert.Zero(t, store.OrderCount())

	err = admin.Delete(context.Background(), order.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestAdvance(t *testing.T) {
	store := porttest.NewStore(shoe("P", 100, domain.SizeStock{Size: 9, Stock: 10}))
	store.AddUser("admin@x.com", domain.RoleAdmin)
	svc, _ := newOrderService(t, store, porttest.NewCache(), porttest.Anonymous)
	order, err := svc.Submit(context.Background(), checkout(line("P", 100, 9, 1)))
	require.NoError(t, err)

	admin, _ := newOrderService(t, store, porttest.NewCache(), porttest.As("admin@x.com"))
	ctx := context.Background()

	status := domain.OrderStatusInTransit
	paid := domain.PaymentStatusPaid
	got, err := admin.Advance(ctx, order.ID, OrderPatch{Status: &status, PaymentStatus: &paid})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusInTransit, got.Status)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
	assert.Nil(t, got.DeliveryDate)

	back := domain.OrderStatusConfirmed
	_, err = admin.Advance(ctx, order.ID, OrderPatch{Status: &back})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	bogus := domain.PaymentStatus("maybe")
	_, err = admin.Advance(ctx, order.ID, OrderPatch{PaymentStatus: &bogus})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	delivered := domain.OrderStatusDelivered
	got, err = admin.Advance(ctx, order.ID, OrderPatch{Status: &delivered})
	require.NoError(t, err)
	assert.NotNil(t, got.DeliveryDate)

	stored, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, stored.Status)
	assert.NotNil(t, stored.DeliveryDate)

	_, err = svc.Advance(ctx, order.ID, OrderPatch{Status: &delivered})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestQuote(t *testing.T) {
	discounted := shoe("Q", 80)
	sale := decimal.NewFromInt(60)
	discounted.DiscountPrice = &sale
	store := porttest.NewStore(shoe("P", 100), discounted)
	svc, _ := newOrderService(t, store, porttest.NewCache(), porttest.Anonymous)

	q, err := svc.Quote(context.Background(), []domain.CartEntry{
		{ProductID: "P", Size: 9, Count: 1},
		{ProductID: "Q", Size: 8, Count: 2},
	}, "WELCOME10")
	require.NoError(t, err)

	assert.Equal(t, []domain.OrderLine{line("P", 100, 9, 1), line("Q", 60, 8, 2)}, q.Lines)
	assert.Equal(t, "220", q.Subtotal.String())
	assert.Equal(t, "10", q.Shipping.String())
	assert.Equal(t, "22", q.Discount.String())
	assert.Equal(t, "208", q.Total.String())

	empty, err := svc.Quote(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Empty(t, empty.Lines)
	assert.True(t, empty.Total.IsZero())

	_, err = svc.Quote(context.Background(), []domain.CartEntry{{ProductID: "nope", Size: 9, Count: 1}}, "")
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{ErrEmptyOrder, KindValidation},
		{fmt.Errorf("wrapped: %w", ErrForbidden), KindForbidden},
		{&StockShortageError{}, KindInsufficientStock},
		{fmt.Errorf("get: %w", port.ErrNotFound), KindNotFound},
		{errors.New("boom"), KindBackend},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, KindOf(c.err), "%v", c.err)
	}
}
