package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/port"
)

func (m *MySQLAdapter) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := m.db.QueryRowContext(ctx, `
		SELECT id, subject, email, name, phone, profile_image, role, created_at
		FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Subject, &u.Email, &u.Name, &u.Phone, &u.ProfileImage, &u.Role, &u.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (m *MySQLAdapter) CreateUser(ctx context.Context, u domain.User) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO users (id, subject, email, name, phone, profile_image, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Subject, u.Email, u.Name, u.Phone, u.ProfileImage, u.Role, u.CreatedAt,
	)
	if err != nil {
		return translate(fmt.Errorf("insert user: %w", err))
	}
	return nil
}
