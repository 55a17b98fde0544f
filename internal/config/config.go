package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	MySQLDSN  string
	RedisAddr string

	JWTSecret string
	JWTIssuer string

	BlobBaseURL string

	WorkerCount int
	QueueSize   int

	PersistTimeout   time.Duration
	CheckoutAttempts int
	CheckoutBackoff  time.Duration
	CartTTL          time.Duration

	CheckoutRPS   float64
	CheckoutBurst int
}

func Load() *Config {
	return &Config{
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:         getenv("GRPC_ADDR", ":50051"),
		MySQLDSN:         getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/shoestore?parseTime=true"),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:        getenv("JWT_SECRET", "replace-with-secure-secret"),
		JWTIssuer:        os.Getenv("JWT_ISSUER"),
		BlobBaseURL:      getenv("BLOB_BASE_URL", "http://localhost:9000/images"),
		WorkerCount:      getenvInt("WORKER_COUNT", 4),
		QueueSize:        getenvInt("QUEUE_SIZE", 1000),
		PersistTimeout:   getenvDuration("PERSIST_TIMEOUT", 5*time.Second),
		CheckoutAttempts: getenvInt("CHECKOUT_ATTEMPTS", 3),
		CheckoutBackoff:  getenvDuration("CHECKOUT_BACKOFF", 20*time.Millisecond),
		CartTTL:          getenvDuration("CART_TTL", 7*24*time.Hour),
		CheckoutRPS:      getenvFloat("CHECKOUT_RPS", 5),
		CheckoutBurst:    getenvInt("CHECKOUT_BURST", 10),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
