package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/port"
)

const shoeColumns = `id, name, brand, category, description, alt, price, discount_price,
	sizes, image_id, default_image, version, created_at, updated_at`

var distinctColumns = map[domain.ShoeField]string{
	domain.ShoeFieldBrand:    "brand",
	domain.ShoeFieldCategory: "category",
}

func scanShoe(row rowScanner) (*domain.Shoe, error) {
	var (
		shoe     domain.Shoe
		discount decimal.NullDecimal
		sizes    []byte
	)
	err := row.Scan(&shoe.ID, &shoe.Name, &shoe.Brand, &shoe.Category, &shoe.Description, &shoe.Alt,
		&shoe.Price, &discount, &sizes, &shoe.ImageID, &shoe.DefaultImage, &shoe.Version,
		&shoe.CreatedAt, &shoe.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if discount.Valid {
		d := discount.Decimal
		shoe.DiscountPrice = &d
	}
	if err := json.Unmarshal(sizes, &shoe.Sizes); err != nil {
		return nil, fmt.Errorf("decode sizes of %s: %w", shoe.ID, err)
	}
	return &shoe, nil
}

func encodeSizes(sizes []domain.SizeStock) ([]byte, error) {
	if sizes == nil {
		sizes = []domain.SizeStock{}
	}
	return json.Marshal(sizes)
}

func nullDiscount(p *decimal.Decimal) decimal.NullDecimal {
	if p == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *p, Valid: true}
}

func (m *MySQLAdapter) GetShoe(ctx context.Context, id string) (*domain.Shoe, error) {
	shoe, err := scanShoe(m.db.QueryRowContext(ctx,
		`SELECT `+shoeColumns+` FROM shoes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query shoe: %w", err)
	}
	return shoe, nil
}

func (m *MySQLAdapter) QueryShoes(ctx context.Context, q domain.ShoeQuery) ([]domain.Shoe, error) {
	var (
		where []string
		args  []any
	)
	addIn := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		where = append(where, column+" IN ("+placeholders(len(values))+")")
		for _, v := range values {
			args = append(args, v)
		}
	}
	addIn("id", q.IDs)
	addIn("brand", q.Brands)
	addIn("category", q.Categories)

	query := `SELECT ` + shoeColumns + ` FROM shoes`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if q.Take > 0 {
		query += " LIMIT ?"
		args = append(args, q.Take)
	}

	return m.queryShoes(ctx, query, args...)
}

func (m *MySQLAdapter) ListShoesAfter(ctx context.Context, afterID string, limit int) ([]domain.Shoe, error) {
	return m.queryShoes(ctx,
		`SELECT `+shoeColumns+` FROM shoes WHERE id > ? ORDER BY id LIMIT ?`, afterID, limit)
}

func (m *MySQLAdapter) queryShoes(ctx context.Context, query string, args ...any) ([]domain.Shoe, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query shoes: %w", err)
	}
	defer rows.Close()

	var shoes []domain.Shoe
	for rows.Next() {
		shoe, err := scanShoe(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shoe: %w", err)
		}
		shoes = append(shoes, *shoe)
	}
	return shoes, rows.Err()
}

func (m *MySQLAdapter) DistinctShoeValues(ctx context.Context, field domain.ShoeField) ([]string, error) {
	column, ok := distinctColumns[field]
	if !ok {
		return nil, fmt.Errorf("unsupported distinct field %q", field)
	}

	rows, err := m.db.QueryContext(ctx,
		`SELECT DISTINCT `+column+` FROM shoes WHERE `+column+` <> '' ORDER BY `+column)
	if err != nil {
		return nil, fmt.Errorf("query distinct %s: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan distinct %s: %w", column, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func (m *MySQLAdapter) CreateShoe(ctx context.Context, shoe domain.Shoe) error {
	sizes, err := encodeSizes(shoe.Sizes)
	if err != nil {
		return err
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO shoes (`+shoeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		shoe.ID, shoe.Name, shoe.Brand, shoe.Category, shoe.Description, shoe.Alt,
		shoe.Price, nullDiscount(shoe.DiscountPrice), sizes, shoe.ImageID, shoe.DefaultImage,
		shoe.Version, shoe.CreatedAt, shoe.UpdatedAt,
	)
	if err != nil {
		return translate(fmt.Errorf("insert shoe: %w", err))
	}
	return nil
}

func (m *MySQLAdapter) UpdateShoe(ctx context.Context, shoe domain.Shoe) error {
	sizes, err := encodeSizes(shoe.Sizes)
	if err != nil {
		return err
	}

	result, err := m.db.ExecContext(ctx, `
		UPDATE shoes
		SET name = ?, brand = ?, category = ?, description = ?, alt = ?, price = ?,
			discount_price = ?, sizes = ?, image_id = ?, default_image = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		shoe.Name, shoe.Brand, shoe.Category, shoe.Description, shoe.Alt, shoe.Price,
		nullDiscount(shoe.DiscountPrice), sizes, shoe.ImageID, shoe.DefaultImage,
		shoe.UpdatedAt, shoe.ID, shoe.Version,
	)
	if err != nil {
		return translate(fmt.Errorf("update shoe: %w", err))
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return m.missingOrStale(ctx, shoe.ID)
	}
	return nil
}

func (m *MySQLAdapter) DeleteShoe(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM shoes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete shoe: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrNotFound
	}
	return nil
}

// missingOrStale explains why a version-checked update touched no row.
func (m *MySQLAdapter) missingOrStale(ctx context.Context, id string) error {
	var one int
	err := m.db.QueryRowContext(ctx, `SELECT 1 FROM shoes WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return port.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check shoe: %w", err)
	}
	return port.ErrVersionConflict
}
