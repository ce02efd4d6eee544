package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
)

// User is the account owning a spendable balance in whole currency units
type User struct {
	ID        uuid.UUID
	Name      string
	Balance   int64
	CreatedAt time.Time
}

// UserRepository is the account store the bidding core depends on.
// DebitBalance must check and debit atomically so two concurrent debits can
// never drive the balance below zero.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	Create(ctx context.Context, u *User) error
	DebitBalance(ctx context.Context, id uuid.UUID, amount int64) error
	CreditBalance(ctx context.Context, id uuid.UUID, amount int64) error
}
