package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"tradehook/internal/broker"
	"tradehook/internal/domain"
)

// Alpaca accepts at most nine decimal places on fractional quantities.
const qtyPrecision = 9

// Recorder receives every resolved outcome for audit. Implementations must
// tolerate concurrent calls.
type Recorder interface {
	Record(ctx context.Context, sig domain.Signal, out domain.Outcome) error
}

// Resolver decides what broker action (if any) an inbound signal maps to:
// place a sized buy, liquidate, skip, or reject. It holds no position state
// of its own; the broker is queried live on every decision.
type Resolver struct {
	broker   broker.Broker
	policy   SizingPolicy
	recorder Recorder
	log      *slog.Logger
	locks    *symbolLocks
}

// NewResolver creates a Resolver wired with the given broker, sizing policy,
// and outcome recorder. recorder may be nil to disable auditing.
func NewResolver(b broker.Broker, policy SizingPolicy, recorder Recorder, log *slog.Logger) *Resolver {
	return &Resolver{
		broker:   b,
		policy:   policy,
		recorder: recorder,
		log:      log.With("component", "resolver"),
		locks:    newSymbolLocks(),
	}
}

// Resolve runs one signal through validation and the buy/sell branches and
// returns its terminal outcome. Every broker call is attempted exactly once;
// broker errors come back as failed outcomes, never as Go errors.
func (r *Resolver) Resolve(ctx context.Context, sig domain.Signal) domain.Outcome {
	out := r.resolve(ctx, sig)

	r.log.Info("signal resolved",
		"symbol", sig.Symbol,
		"side", sig.Side,
		"price", sig.Price,
		"status", out.Status,
		"message", out.Message,
	)

	if r.recorder != nil {
		if err := r.recorder.Record(ctx, sig, out); err != nil {
			// Auditing is best-effort; the caller still gets the outcome.
			r.log.Warn("recording outcome", "symbol", sig.Symbol, "err", err)
		}
	}

	return out
}

func (r *Resolver) resolve(ctx context.Context, sig domain.Signal) domain.Outcome {
	if out, ok := r.validate(sig); !ok {
		return out
	}

	if sig.Side == domain.SideSell {
		// Liquidation is attempted even when no position is known to
		// exist: local knowledge may be stale and the broker is
		// authoritative.
		return r.broker.ClosePosition(ctx, sig.Symbol)
	}

	return r.buy(ctx, sig)
}

// validate rejects malformed signals before any broker I/O.
func (r *Resolver) validate(sig domain.Signal) (domain.Outcome, bool) {
	if sig.Symbol == "" {
		return rejected("missing symbol in signal"), false
	}
	if sig.Side != domain.SideBuy && sig.Side != domain.SideSell {
		return rejected(fmt.Sprintf("invalid side %q in signal", string(sig.Side))), false
	}
	if !sig.Price.IsPositive() {
		return rejected(fmt.Sprintf("reference price %s for %s is not positive", sig.Price, sig.Symbol)), false
	}
	return domain.Outcome{}, true
}

// buy runs the position-check-then-place sequence under the per-symbol lock.
func (r *Resolver) buy(ctx context.Context, sig domain.Signal) domain.Outcome {
	unlock := r.locks.Lock(sig.Symbol)
	defer unlock()

	// One position per symbol: duplicate buy signals must not pyramid.
	if pos := r.broker.OpenPosition(ctx, sig.Symbol); pos != nil {
		return domain.Outcome{
			Status:  domain.StatusSkipped,
			Message: fmt.Sprintf("Already holding %s, skipping buy order.", sig.Symbol),
		}
	}

	equity := decimal.Zero
	if r.policy.NeedsEquity() {
		equity = r.broker.AccountEquity(ctx)
	}

	qty := r.policy.Quantity(equity, sig.Price).Round(qtyPrecision)
	if !qty.IsPositive() {
		// Covers the degraded zero-equity path: never submit a
		// zero-quantity order.
		return rejected(fmt.Sprintf("computed quantity %s for %s is not positive, order not submitted", qty, sig.Symbol))
	}

	return r.broker.PlaceMarketOrder(ctx, sig.Symbol, qty, domain.SideBuy)
}

func rejected(msg string) domain.Outcome {
	return domain.Outcome{Status: domain.StatusRejected, Message: msg}
}
