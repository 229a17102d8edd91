// Package engine contains the order-intent resolver that turns inbound
// signals into broker actions, and the sizing policies that compute buy
// quantities.
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradehook/internal/config"
)

// SizingPolicy computes the quantity for a new buy order. The policy is
// chosen once at startup, never per request.
type SizingPolicy interface {
	// Quantity returns the order quantity for the given account equity and
	// reference price. The caller guarantees price is positive.
	Quantity(equity, price decimal.Decimal) decimal.Decimal

	// NeedsEquity reports whether the policy uses account equity, so the
	// resolver can skip the account lookup for static policies.
	NeedsEquity() bool
}

// Compile-time interface checks.
var _ SizingPolicy = EquityFractionPolicy{}
var _ SizingPolicy = FixedAmountPolicy{}

// EquityFractionPolicy commits a fixed fraction of current account equity to
// each new position: quantity = equity × fraction ÷ price.
type EquityFractionPolicy struct {
	Fraction decimal.Decimal
}

// Quantity implements SizingPolicy.
func (p EquityFractionPolicy) Quantity(equity, price decimal.Decimal) decimal.Decimal {
	return equity.Mul(p.Fraction).Div(price)
}

// NeedsEquity returns true.
func (p EquityFractionPolicy) NeedsEquity() bool { return true }

// FixedAmountPolicy commits a fixed dollar amount to each new position:
// quantity = amount ÷ price. Account equity is ignored.
type FixedAmountPolicy struct {
	Amount decimal.Decimal
}

// Quantity implements SizingPolicy.
func (p FixedAmountPolicy) Quantity(_, price decimal.Decimal) decimal.Decimal {
	return p.Amount.Div(price)
}

// NeedsEquity returns false.
func (p FixedAmountPolicy) NeedsEquity() bool { return false }

// NewSizingPolicy builds the policy selected by the sizing configuration.
func NewSizingPolicy(cfg config.Sizing) (SizingPolicy, error) {
	switch cfg.Mode {
	case config.SizingEquityFraction:
		return EquityFractionPolicy{Fraction: decimal.NewFromFloat(cfg.EquityFraction)}, nil
	case config.SizingFixedAmount:
		return FixedAmountPolicy{Amount: decimal.NewFromFloat(cfg.FixedAmount)}, nil
	default:
		return nil, fmt.Errorf("unknown sizing mode %q", cfg.Mode)
	}
}
