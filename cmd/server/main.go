package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/shoe-store/internal/adapter/auth"
	"github.com/rl1809/shoe-store/internal/adapter/handler"
	"github.com/rl1809/shoe-store/internal/adapter/handler/storerpc"
	"github.com/rl1809/shoe-store/internal/adapter/storage"
	"github.com/rl1809/shoe-store/internal/config"
	"github.com/rl1809/shoe-store/internal/core/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	logger.Info("connected to redis")

	redisAdapter := storage.NewRedisAdapter(rdb, cfg.CartTTL, logger)
	blobs, err := storage.NewPublicURLResolver(cfg.BlobBaseURL)
	if err != nil {
		return err
	}
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	identity := auth.ContextProvider{}

	// Initialize services
	repos := service.Repositories{Shoes: mysqlAdapter, Orders: mysqlAdapter, Users: mysqlAdapter}
	feed := service.NewStockFeed(cfg.QueueSize, logger)
	orderService := service.NewOrderService(repos, redisAdapter, identity, feed, service.OrderConfig{
		MaxAttempts: cfg.CheckoutAttempts,
		BaseBackoff: cfg.CheckoutBackoff,
		Timeout:     cfg.PersistTimeout,
		Pricing:     service.DefaultPricing(),
	}, logger)
	inventoryService := service.NewInventoryService(repos, blobs, identity, feed, cfg.PersistTimeout, logger)
	userService := service.NewUserService(repos, identity, cfg.PersistTimeout, logger)
	cartService := service.NewCartService(redisAdapter, cfg.PersistTimeout)

	// Start publishing workers
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			service.PublishLoop(id, feed, redisAdapter, cfg.PersistTimeout, logger)
		}(i)
	}
	logger.Info("started stock publishers", "workers", cfg.WorkerCount)

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.AuthInterceptor(verifier)))
	storerpc.RegisterStoreServiceServer(grpcServer, handler.NewGRPCHandler(orderService, inventoryService, logger))

	httpHandler := handler.NewHTTPHandler(handler.HTTPDeps{
		Orders:        orderService,
		Inventory:     inventoryService,
		Users:         userService,
		Carts:         cartService,
		Notifier:      redisAdapter,
		Verifier:      verifier,
		CheckoutRPS:   cfg.CheckoutRPS,
		CheckoutBurst: cfg.CheckoutBurst,
		Logger:        logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		logger.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")
		return err
	})

	err = g.Wait()

	// Requests are done; flush queued stock updates before closing Redis
	feed.Close()
	wg.Wait()
	logger.Info("publishers stopped")

	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}
