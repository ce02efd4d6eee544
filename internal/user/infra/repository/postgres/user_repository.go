package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/auctionHouse/internal/shared/db"
	"github.com/cristianortiz/auctionHouse/internal/user/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// UserRepository implements domain.UserRepository for PostgreSQL.
type UserRepository struct {
	q db.Querier
}

// NewUserRepository accepts the pool or an open transaction.
func NewUserRepository(q db.Querier) *UserRepository {
	return &UserRepository{q: q}
}

// GetByID loads a user, domain.ErrUserNotFound when missing.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT id, name, balance, created_at FROM users WHERE id = $1`

	user := &domain.User{}
	err := r.q.QueryRow(ctx, query, id).Scan(&user.ID, &user.Name, &user.Balance, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (id, name, balance, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.q.Exec(ctx, query, u.ID, u.Name, u.Balance, u.CreatedAt); err != nil {
		return fmt.Errorf("create user %s: %w", u.ID, err)
	}
	return nil
}

// DebitBalance subtracts amount only if the balance covers it. The row lock
// taken by the UPDATE serializes concurrent debits of the same user.
func (r *UserRepository) DebitBalance(ctx context.Context, id uuid.UUID, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	tag, err := r.q.Exec(ctx, `UPDATE users SET balance = balance - $2 WHERE id = $1 AND balance >= $2`, id, amount)
	if err != nil {
		return fmt.Errorf("debit user %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return r.missingOrShort(ctx, id)
}

func (r *UserRepository) CreditBalance(ctx context.Context, id uuid.UUID, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	tag, err := r.q.Exec(ctx, `UPDATE users SET balance = balance + $2 WHERE id = $1`, id, amount)
	if err != nil {
		return fmt.Errorf("credit user %s: %w", id, err)
	}
	return expectOne(tag)
}

func (r *UserRepository) missingOrShort(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check user %s: %w", id, err)
	}
	if !exists {
		return domain.ErrUserNotFound
	}
	return domain.ErrInsufficientBalance
}

func expectOne(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
