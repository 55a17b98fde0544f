package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/port"
)

const orderColumns = `id, email, name, phone, address, city, state, zip_code,
	payment_method, payment_status, status, subtotal, shipping, discount, total,
	ordered_at, delivery_date, updated_at`

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) InsertOrder(ctx context.Context, order domain.Order) error {
	c := order.Contact
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, c.Email, c.Name, c.Phone, c.Address, c.City, c.State, c.ZipCode,
		order.PaymentMethod, order.PaymentStatus, order.Status,
		order.Subtotal, order.Shipping, order.Discount, order.Total,
		order.OrderedAt, order.DeliveryDate, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO order_lines (order_id, line_no, product_id, price, size, quantity)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare order lines: %w", err)
	}
	defer stmt.Close()

	for i, l := range order.Lines {
		if _, err := stmt.ExecContext(ctx, order.ID, i, l.ProductID, l.Price, l.Size, l.Quantity); err != nil {
			return fmt.Errorf("insert order line %d: %w", i, err)
		}
	}
	return nil
}

func (t *mysqlTx) LockSizes(ctx context.Context, productID string) ([]domain.SizeStock, int, error) {
	var (
		raw     []byte
		version int
	)
	err := t.tx.QueryRowContext(ctx,
		`SELECT sizes, version FROM shoes WHERE id = ? FOR UPDATE`, productID,
	).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, port.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("lock sizes: %w", err)
	}

	var sizes []domain.SizeStock
	if err := json.Unmarshal(raw, &sizes); err != nil {
		return nil, 0, fmt.Errorf("decode sizes of %s: %w", productID, err)
	}
	return sizes, version, nil
}

func (t *mysqlTx) WriteSizes(ctx context.Context, productID string, sizes []domain.SizeStock, version int) error {
	raw, err := encodeSizes(sizes)
	if err != nil {
		return err
	}

	result, err := t.tx.ExecContext(ctx, `
		UPDATE shoes
		SET sizes = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		raw, time.Now(), productID, version,
	)
	if err != nil {
		return fmt.Errorf("write sizes: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrVersionConflict
	}
	return nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o        domain.Order
		delivery sql.NullTime
	)
	err := row.Scan(&o.ID, &o.Contact.Email, &o.Contact.Name, &o.Contact.Phone, &o.Contact.Address,
		&o.Contact.City, &o.Contact.State, &o.Contact.ZipCode,
		&o.PaymentMethod, &o.PaymentStatus, &o.Status,
		&o.Subtotal, &o.Shipping, &o.Discount, &o.Total,
		&o.OrderedAt, &delivery, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if delivery.Valid {
		d := delivery.Time
		o.DeliveryDate = &d
	}
	return &o, nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(m.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	orders := []domain.Order{*order}
	if err := m.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, email string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if email != "" {
		query += ` WHERE email = ?`
		args = append(args, email)
	}
	query += ` ORDER BY ordered_at DESC, id`

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	if err := m.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (m *MySQLAdapter) attachLines(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[string]int, len(orders))
	args := make([]any, 0, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		args = append(args, o.ID)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT order_id, product_id, price, size, quantity
		FROM order_lines
		WHERE order_id IN (`+placeholders(len(args))+`)
		ORDER BY order_id, line_no`, args...)
	if err != nil {
		return fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			l       domain.OrderLine
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.Price, &l.Size, &l.Quantity); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		i := index[orderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	return rows.Err()
}

func (m *MySQLAdapter) UpdateOrderProgress(ctx context.Context, order domain.Order) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, payment_status = ?, delivery_date = ?, updated_at = ?
		WHERE id = ?`,
		order.Status, order.PaymentStatus, order.DeliveryDate, order.UpdatedAt, order.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrNotFound
	}
	return nil
}

func (m *MySQLAdapter) DeleteOrder(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrNotFound
	}
	return nil
}
