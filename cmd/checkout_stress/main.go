package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/shoe-store/internal/adapter/auth"
	"github.com/rl1809/shoe-store/internal/adapter/storage"
	"github.com/rl1809/shoe-store/internal/config"
	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/core/service"
)

const shoeSize = 42

func main() {
	initialStock := flag.Int("stock", 20, "units of the contested size")
	totalRequests := flag.Int("requests", 50, "concurrent checkouts, one unit each")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg := config.Load()
	ctx := context.Background()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		fatal(logger, "open mysql", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(50)

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.Migrate(ctx); err != nil {
		fatal(logger, "migrate", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		fatal(logger, "connect redis", err)
	}
	defer rdb.Close()
	redisAdapter := storage.NewRedisAdapter(rdb, cfg.CartTTL, logger)

	// Seed a fresh shoe whose only size holds the contested units
	now := time.Now()
	shoe := domain.Shoe{
		ID:        "stress-" + uuid.NewString(),
		Name:      "Stress Runner",
		Brand:     "stress",
		Category:  "running",
		Price:     decimal.NewFromInt(100),
		Sizes:     []domain.SizeStock{{Size: shoeSize, Stock: *initialStock}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := mysqlAdapter.CreateShoe(ctx, shoe); err != nil {
		fatal(logger, "seed shoe", err)
	}

	feed := service.NewStockFeed(*totalRequests, logger)
	defer feed.Close()
	repos := service.Repositories{Shoes: mysqlAdapter, Orders: mysqlAdapter, Users: mysqlAdapter}
	orderService := service.NewOrderService(repos, redisAdapter, auth.ContextProvider{}, feed, service.OrderConfig{
		MaxAttempts: 10,
		BaseBackoff: cfg.CheckoutBackoff,
		Timeout:     cfg.PersistTimeout,
		Pricing:     service.DefaultPricing(),
	}, logger)

	var successCount, soldOutCount, conflictCount, errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(buyer int) {
			defer wg.Done()

			_, err := orderService.Submit(ctx, service.CheckoutRequest{
				RequestID: uuid.NewString(),
				Contact: domain.Contact{
					Name:  fmt.Sprintf("buyer %d", buyer),
					Email: fmt.Sprintf("buyer-%d@stress.test", buyer),
				},
				Lines: []domain.OrderLine{{ProductID: shoe.ID, Price: shoe.Price, Size: shoeSize, Quantity: 1}},
			})
			switch service.KindOf(err) {
			case service.KindNone:
				successCount.Add(1)
			case service.KindInsufficientStock:
				soldOutCount.Add(1)
			case service.KindConflict:
				conflictCount.Add(1)
			default:
				errorCount.Add(1)
				logger.Error("checkout failed", "buyer", buyer, "err", err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	final, err := mysqlAdapter.GetShoe(ctx, shoe.ID)
	if err != nil {
		fatal(logger, "read final stock", err)
	}

	success := int(successCount.Load())
	fmt.Println("========== CHECKOUT STRESS RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOutCount.Load())
	fmt.Printf("Conflicts:        %d\n", conflictCount.Load())
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Final Stock:      %d\n", final.Sizes[0].Stock)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("=============================================")

	if success+final.Sizes[0].Stock != *initialStock || final.Sizes[0].Stock < 0 {
		fmt.Println("FAIL: stock and successful orders do not add up")
		os.Exit(1)
	}
	fmt.Println("PASS: no oversell")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}
