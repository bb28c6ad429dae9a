package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/Freeeeeet/classdesk/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepositoryPG struct {
	*base.Repository
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{Repository: base.NewRepository(pool)}
}

// Create inserts or replaces a user profile
func (r *UserRepositoryPG) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, role, name, email, active, domain)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET role = EXCLUDED.role, name = EXCLUDED.name, email = EXCLUDED.email,
		    active = EXCLUDED.active, domain = EXCLUDED.domain
	`

	_, err := r.Pool().Exec(ctx, query,
		user.ID,
		string(user.Role),
		user.Name,
		user.Email,
		user.Active,
		nullIfEmpty(user.Domain),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// GetByID returns the profile or nil when absent
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `
		SELECT id, role, name, email, active, domain
		FROM users
		WHERE id = $1
	`

	var (
		user   model.User
		role   string
		domain *string
	)
	err := r.Pool().QueryRow(ctx, query, id).Scan(
		&user.ID,
		&role,
		&user.Name,
		&user.Email,
		&user.Active,
		&domain,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	user.Role, err = model.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	if domain != nil {
		user.Domain = *domain
	}

	return &user, nil
}

// Delete removes the user document
func (r *UserRepositoryPG) Delete(ctx context.Context, id string) error {
	affected, err := r.ExecAffected(ctx, r.Pool(), `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
