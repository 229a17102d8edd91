// Package domain defines the value types shared across the signal pipeline:
// inbound signals, broker-reported positions, and resolution outcomes.
package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trading signal.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide normalizes s to lowercase and reports whether it names a valid
// side.
func ParseSide(s string) (Side, bool) {
	switch Side(strings.ToLower(s)) {
	case SideBuy:
		return SideBuy, true
	case SideSell:
		return SideSell, true
	default:
		return "", false
	}
}

// Signal is a single inbound trade instruction. It is constructed per
// webhook call and discarded after resolution.
type Signal struct {
	Symbol string
	Side   Side

	// Price is the reference price attached to the signal (the alert bar's
	// close). It is only used for sizing buy orders.
	Price decimal.Decimal
}

// Position is a broker-reported holding. Positions are queried live on each
// decision and never cached; the broker is the single source of truth.
type Position struct {
	Symbol        string
	Qty           decimal.Decimal
	AvgEntryPrice decimal.Decimal
}

// Status is the terminal state of a resolved signal.
type Status string

const (
	// StatusPlaced means a new market order was accepted by the broker.
	StatusPlaced Status = "placed"

	// StatusSkipped means a buy signal arrived while a position for the
	// symbol was already open; no order was submitted.
	StatusSkipped Status = "skipped"

	// StatusClosed means a full liquidation was accepted by the broker.
	// The wire value is "success" to match the webhook response contract.
	StatusClosed Status = "success"

	// StatusRejected means the signal failed validation locally; no broker
	// call was made (or a computed quantity was not positive).
	StatusRejected Status = "rejected"

	// StatusFailed means the broker refused the order or liquidation. The
	// wire value is "error" to match the webhook response contract.
	StatusFailed Status = "error"
)

// Outcome is the terminal result of resolving one signal. It is returned to
// the webhook caller verbatim as the response body.
type Outcome struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`

	// RawOrder carries the broker's order object exactly as echoed back on
	// a successful placement. When set, the ingress writes it as the
	// response body instead of the Outcome itself.
	RawOrder json.RawMessage `json:"-"`
}

// Placed reports whether the outcome represents an accepted order.
func (o Outcome) Placed() bool { return o.Status == StatusPlaced }
