package repository

import (
	"context"
	"fmt"

	"skillfund/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// CreateWithProfile inserts the credentials row and its profile in one transaction.
func (r *UserRepository) CreateWithProfile(ctx context.Context, u *model.User, p *model.Profile) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, u.Email, u.PasswordHash).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return mapError("insert user", err)
	}

	p.ID = u.ID
	p.Email = u.Email
	err = tx.QueryRow(ctx, `
		INSERT INTO profiles (id, email, full_name, primary_role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, p.ID, p.Email, p.FullName, p.PrimaryRole).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapError("insert profile", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindByEmail returns user by email (case-insensitive).
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := r.db.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, mapError("find user", err)
	}
	return &u, nil
}
