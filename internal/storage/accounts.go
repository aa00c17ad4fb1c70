package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/courtsideapp/courtside/internal/db"
	"github.com/courtsideapp/courtside/internal/model"
)

type AccountRepository struct {
	pool *db.Pool
}

func NewAccountRepository(pool *db.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) Create(ctx context.Context, a *model.Account) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, email, password_hash, first_name, last_name, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, a.ID, a.Email, a.PasswordHash, a.FirstName, a.LastName, a.Admin).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	var a model.Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, first_name, last_name, is_admin, created_at, updated_at
		FROM accounts
		WHERE email = $1
	`, email).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName, &a.Admin, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Account{}, err
	}
	return a, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Account, error) {
	var a model.Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, first_name, last_name, is_admin, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName, &a.Admin, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Account{}, err
	}
	return a, nil
}
