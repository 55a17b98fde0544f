package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/shoe-store/internal/port"
)

const (
	errDuplicateEntry  = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS shoes (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		brand VARCHAR(255) NOT NULL DEFAULT '',
		category VARCHAR(255) NOT NULL DEFAULT '',
		description TEXT NOT NULL,
		alt VARCHAR(255) NOT NULL DEFAULT '',
		price DECIMAL(12,2) NOT NULL,
		discount_price DECIMAL(12,2) NULL,
		sizes JSON NOT NULL,
		image_id VARCHAR(255) NOT NULL DEFAULT '',
		default_image TEXT NOT NULL,
		version INT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX by_brand (brand),
		INDEX by_category (category)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(36) PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		phone VARCHAR(64) NOT NULL DEFAULT '',
		address TEXT NOT NULL,
		city VARCHAR(255) NOT NULL DEFAULT '',
		state VARCHAR(255) NOT NULL DEFAULT '',
		zip_code VARCHAR(32) NOT NULL DEFAULT '',
		payment_method VARCHAR(16) NOT NULL,
		payment_status VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL,
		subtotal DECIMAL(12,2) NOT NULL,
		shipping DECIMAL(12,2) NOT NULL,
		discount DECIMAL(12,2) NOT NULL,
		total DECIMAL(12,2) NOT NULL,
		ordered_at DATETIME(6) NOT NULL,
		delivery_date DATETIME(6) NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX by_email (email)
	)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		order_id VARCHAR(36) NOT NULL,
		line_no INT NOT NULL,
		product_id VARCHAR(36) NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		size DOUBLE NOT NULL,
		quantity INT NOT NULL,
		PRIMARY KEY (order_id, line_no),
		FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		subject VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		phone VARCHAR(64) NOT NULL DEFAULT '',
		profile_image TEXT NOT NULL,
		role VARCHAR(16) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE INDEX by_email (email),
		INDEX by_role (role)
	)`,
}

func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// InTx runs fn in a transaction and commits when it returns nil. Deadlocks
// and lock wait timeouts surface as port.ErrVersionConflict.
func (m *MySQLAdapter) InTx(ctx context.Context, fn func(tx port.StockTx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&mysqlTx{tx: tx}); err != nil {
		return translate(err)
	}

	if err := tx.Commit(); err != nil {
		return translate(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func translate(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case errDeadlock, errLockWaitTimeout:
		return fmt.Errorf("%w: %v", port.ErrVersionConflict, err)
	case errDuplicateEntry:
		return fmt.Errorf("%w: %v", port.ErrAlreadyExists, err)
	}
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

type rowScanner interface {
	Scan(dest ...any) error
}
