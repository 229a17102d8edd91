package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradehook/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*PaperBroker)(nil)

// PaperBroker implements the Broker interface in memory for paper trading.
// Orders fill immediately, positions are tracked per symbol, and equity
// stays fixed at its configured value.
type PaperBroker struct {
	mu        sync.Mutex
	equity    decimal.Decimal
	positions map[string]*domain.Position
}

// NewPaperBroker creates a PaperBroker with the given fixed account equity
// and no open positions.
func NewPaperBroker(equity decimal.Decimal) *PaperBroker {
	return &PaperBroker{
		equity:    equity,
		positions: make(map[string]*domain.Position),
	}
}

// Name returns "paper".
func (b *PaperBroker) Name() string {
	return "paper"
}

// AccountEquity returns the configured paper equity.
func (b *PaperBroker) AccountEquity(_ context.Context) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.equity
}

// OpenPosition returns the simulated position for symbol, or nil.
func (b *PaperBroker) OpenPosition(_ context.Context, symbol string) *domain.Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.positions[symbol]
	if !ok {
		return nil
	}
	cp := *pos
	return &cp
}

// PlaceMarketOrder fills the order immediately, creating or extending the
// position for symbol.
func (b *PaperBroker) PlaceMarketOrder(_ context.Context, symbol string, qty decimal.Decimal, side domain.Side) domain.Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()

	if side == domain.SideSell {
		delete(b.positions, symbol)
	} else if pos, ok := b.positions[symbol]; ok {
		pos.Qty = pos.Qty.Add(qty)
	} else {
		b.positions[symbol] = &domain.Position{Symbol: symbol, Qty: qty}
	}

	echo := map[string]any{
		"id":            uuid.NewString(),
		"symbol":        symbol,
		"qty":           qty.String(),
		"side":          string(side),
		"type":          "market",
		"time_in_force": "day",
		"status":        "filled",
		"filled_at":     time.Now().UTC().Format(time.RFC3339),
	}
	raw, _ := json.Marshal(echo)

	return domain.Outcome{
		Status:   domain.StatusPlaced,
		Message:  fmt.Sprintf("Buy order for %s placed successfully.", symbol),
		RawOrder: raw,
	}
}

// ClosePosition removes the simulated position for symbol. Closing a symbol
// with no position still succeeds, mirroring a broker that accepts the
// request and liquidates nothing.
func (b *PaperBroker) ClosePosition(_ context.Context, symbol string) domain.Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.positions, symbol)
	return domain.Outcome{
		Status:  domain.StatusClosed,
		Message: fmt.Sprintf("Closed all positions for %s", symbol),
	}
}
