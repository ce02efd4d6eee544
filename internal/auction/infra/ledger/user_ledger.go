package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	userdomain "github.com/cristianortiz/auctionHouse/internal/user/domain"
	"github.com/google/uuid"
)

// UserLedger adapts the user account store to the bidding core's Ledger.
type UserLedger struct {
	users userdomain.UserRepository
}

func NewUserLedger(users userdomain.UserRepository) *UserLedger {
	return &UserLedger{users: users}
}

func (l *UserLedger) GetBidder(ctx context.Context, id uuid.UUID) (*domain.Bidder, error) {
	u, err := l.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userdomain.ErrUserNotFound) {
			return nil, domain.ErrBidderNotFound
		}
		return nil, fmt.Errorf("ledger: get bidder %s: %w", id, err)
	}
	return &domain.Bidder{ID: u.ID, Balance: domain.Money(u.Balance)}, nil
}

// Hold debits amount, refusing without side effects when the balance is short.
func (l *UserLedger) Hold(ctx context.Context, id uuid.UUID, amount domain.Money) error {
	if amount == 0 {
		return nil
	}
	err := l.users.DebitBalance(ctx, id, int64(amount))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, userdomain.ErrInsufficientBalance):
		return domain.ErrInsufficientFunds
	case errors.Is(err, userdomain.ErrUserNotFound):
		return domain.ErrBidderNotFound
	default:
		return fmt.Errorf("ledger: hold %d for %s: %w", amount, id, err)
	}
}

func (l *UserLedger) Release(ctx context.Context, id uuid.UUID, amount domain.Money) error {
	if amount == 0 {
		return nil
	}
	if err := l.users.CreditBalance(ctx, id, int64(amount)); err != nil {
		if errors.Is(err, userdomain.ErrUserNotFound) {
			return domain.ErrBidderNotFound
		}
		return fmt.Errorf("ledger: release %d for %s: %w", amount, id, err)
	}
	return nil
}
