package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a whole currency unit amount (the marketplace never bids in fractions).
type Money int64

// MaxAmount bounds every price, increment and bid, so the sum of two amounts
// always fits in an int64.
const MaxAmount Money = 1_000_000_000_000_000

// DefaultHoldRate is the share of every bid reserved from the bidder's balance.
var DefaultHoldRate = decimal.RequireFromString("0.20")

// HoldPolicy computes the balance hold required for a bid amount.
type HoldPolicy struct {
	rate decimal.Decimal
}

// NewHoldPolicy validates rate is in (0, 1].
func NewHoldPolicy(rate decimal.Decimal) (HoldPolicy, error) {
	if !rate.IsPositive() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return HoldPolicy{}, fmt.Errorf("hold rate must be in (0, 1], got %s", rate.String())
	}
	return HoldPolicy{rate: rate}, nil
}

// DefaultHoldPolicy holds 20% of every bid.
func DefaultHoldPolicy() HoldPolicy {
	return HoldPolicy{rate: DefaultHoldRate}
}

// Rate returns the configured hold share.
func (p HoldPolicy) Rate() decimal.Decimal {
	return p.rate
}

// HoldFor returns ceil(amount × rate), computed exactly.
func (p HoldPolicy) HoldFor(amount Money) Money {
	return Money(decimal.NewFromInt(int64(amount)).Mul(p.rate).Ceil().IntPart())
}

// Covers reports whether balance satisfies the hold for amount. For integer
// balances, balance >= ceil(amount × rate) is the same as balance >= amount × rate.
func (p HoldPolicy) Covers(balance, amount Money) bool {
	return balance >= p.HoldFor(amount)
}
