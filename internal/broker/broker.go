// Package broker wraps account, position, and order operations against a
// brokerage. All broker-side errors are converted to values at this
// boundary: lookups degrade to safe zero values and submissions surface as
// failed outcomes, so nothing in this package returns an error to the
// resolver.
package broker

import (
	"context"

	"github.com/shopspring/decimal"

	"tradehook/internal/domain"
)

// Broker abstracts brokerage operations for signal resolution.
type Broker interface {
	// Name returns the broker identifier (e.g. "alpaca", "paper").
	Name() string

	// AccountEquity fetches the account's total equity. On any network or
	// parse failure it returns zero, which the sizing guard turns into a
	// rejected buy instead of a crashed handler.
	AccountEquity(ctx context.Context) decimal.Decimal

	// OpenPosition returns the open position for symbol, or nil when the
	// broker reports none. A nil result also covers broker failures:
	// callers cannot distinguish "no position" from "lookup failed" here.
	OpenPosition(ctx context.Context, symbol string) *domain.Position

	// PlaceMarketOrder submits a market day order and returns the broker's
	// echo as a placed outcome, or a failed outcome when the broker refuses
	// it.
	PlaceMarketOrder(ctx context.Context, symbol string, qty decimal.Decimal, side domain.Side) domain.Outcome

	// ClosePosition liquidates the entire position for symbol. It is
	// attempted regardless of whether a position is known to exist.
	ClosePosition(ctx context.Context, symbol string) domain.Outcome
}
