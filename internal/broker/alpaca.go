package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"tradehook/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*AlpacaBroker)(nil)

// AlpacaBroker implements the Broker interface using the Alpaca trading API.
type AlpacaBroker struct {
	client *alpaca.Client
	log    *slog.Logger
}

// NewAlpacaBroker creates an AlpacaBroker configured with the given
// credentials and API endpoint. Every request is bounded by timeout; a
// timed-out call surfaces as a failed outcome rather than a hung webhook.
func NewAlpacaBroker(apiKey, apiSecret, baseURL string, timeout time.Duration, log *slog.Logger) *AlpacaBroker {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	})

	return &AlpacaBroker{
		client: client,
		log:    log.With("broker", "alpaca"),
	}
}

// Name returns "alpaca".
func (b *AlpacaBroker) Name() string {
	return "alpaca"
}

// AccountEquity fetches account equity from Alpaca. Any failure degrades to
// zero so a transient outage turns buys into a no-op instead of an error.
func (b *AlpacaBroker) AccountEquity(_ context.Context) decimal.Decimal {
	account, err := b.client.GetAccount()
	if err != nil {
		b.log.Error("fetching account equity", "err", err)
		return decimal.Zero
	}
	return account.Equity
}

// OpenPosition queries the open position for symbol. Both "position not
// found" and any other non-success response collapse to nil.
func (b *AlpacaBroker) OpenPosition(_ context.Context, symbol string) *domain.Position {
	pos, err := b.client.GetPosition(symbol)
	if err != nil {
		return nil
	}
	return &domain.Position{
		Symbol:        pos.Symbol,
		Qty:           pos.Qty,
		AvgEntryPrice: pos.AvgEntryPrice,
	}
}

// PlaceMarketOrder submits a market day order for the given quantity.
func (b *AlpacaBroker) PlaceMarketOrder(_ context.Context, symbol string, qty decimal.Decimal, side domain.Side) domain.Outcome {
	order, err := b.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      symbol,
		Qty:         &qty,
		Side:        alpacaSide(side),
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
	})
	if err != nil {
		b.log.Error("placing order", "symbol", symbol, "qty", qty, "side", side, "err", err)
		return domain.Outcome{
			Status:  domain.StatusFailed,
			Message: fmt.Sprintf("order for %s rejected: %v", symbol, err),
		}
	}

	b.log.Info("order placed", "symbol", symbol, "qty", qty, "side", side, "orderID", order.ID)

	raw, err := json.Marshal(order)
	if err != nil {
		// The order went through; only the echo is lost.
		b.log.Warn("encoding broker order echo", "err", err)
	}
	return domain.Outcome{
		Status:   domain.StatusPlaced,
		Message:  fmt.Sprintf("Buy order for %s placed successfully.", symbol),
		RawOrder: raw,
	}
}

// ClosePosition liquidates the entire position for symbol.
func (b *AlpacaBroker) ClosePosition(_ context.Context, symbol string) domain.Outcome {
	_, err := b.client.ClosePosition(symbol, alpaca.ClosePositionRequest{})
	if err != nil {
		b.log.Error("closing position", "symbol", symbol, "err", err)
		return domain.Outcome{
			Status:  domain.StatusFailed,
			Message: fmt.Sprintf("Failed to close positions for %s: %v", symbol, err),
		}
	}

	b.log.Info("position closed", "symbol", symbol)
	return domain.Outcome{
		Status:  domain.StatusClosed,
		Message: fmt.Sprintf("Closed all positions for %s", symbol),
	}
}

func alpacaSide(side domain.Side) alpaca.Side {
	if side == domain.SideSell {
		return alpaca.Sell
	}
	return alpaca.Buy
}
