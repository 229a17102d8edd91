package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"tradehook/internal/domain"
)

// fakeBroker counts calls and serves positions from an in-memory map. When
// fillOnPlace is set, a placed buy immediately creates a position, emulating
// a broker whose state reflects the fill on the next lookup.
type fakeBroker struct {
	mu          sync.Mutex
	equity      decimal.Decimal
	positions   map[string]*domain.Position
	fillOnPlace bool

	equityCalls   int
	positionCalls int
	placeCalls    int
	closeCalls    int

	lastSymbol string
	lastQty    decimal.Decimal
	lastSide   domain.Side
}

func newFakeBroker(equity int64) *fakeBroker {
	return &fakeBroker{
		equity:    decimal.NewFromInt(equity),
		positions: make(map[string]*domain.Position),
	}
}

func (f *fakeBroker) Name() string { return "fake" }

func (f *fakeBroker) AccountEquity(context.Context) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.equityCalls++
	return f.equity
}

func (f *fakeBroker) OpenPosition(_ context.Context, symbol string) *domain.Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positionCalls++
	pos, ok := f.positions[symbol]
	if !ok {
		return nil
	}
	cp := *pos
	return &cp
}

func (f *fakeBroker) PlaceMarketOrder(_ context.Context, symbol string, qty decimal.Decimal, side domain.Side) domain.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placeCalls++
	f.lastSymbol, f.lastQty, f.lastSide = symbol, qty, side
	if f.fillOnPlace {
		f.positions[symbol] = &domain.Position{Symbol: symbol, Qty: qty}
	}
	return domain.Outcome{
		Status:   domain.StatusPlaced,
		Message:  fmt.Sprintf("Buy order for %s placed successfully.", symbol),
		RawOrder: []byte(`{"symbol":"` + symbol + `"}`),
	}
}

func (f *fakeBroker) ClosePosition(_ context.Context, symbol string) domain.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.lastSymbol = symbol
	delete(f.positions, symbol)
	return domain.Outcome{
		Status:  domain.StatusClosed,
		Message: fmt.Sprintf("Closed all positions for %s", symbol),
	}
}

type captureRecorder struct {
	mu       sync.Mutex
	signals  []domain.Signal
	outcomes []domain.Outcome
	err      error
}

func (c *captureRecorder) Record(_ context.Context, sig domain.Signal, out domain.Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals = append(c.signals, sig)
	c.outcomes = append(c.outcomes, out)
	return c.err
}

func newTestResolver(b *fakeBroker, policy SizingPolicy, rec Recorder) *Resolver {
	return NewResolver(b, policy, rec, slog.New(slog.DiscardHandler))
}

func defaultPolicy() SizingPolicy {
	return EquityFractionPolicy{Fraction: decimal.NewFromFloat(0.425)}
}

func TestResolveRejectsInvalidSignals(t *testing.T) {
	cases := []struct {
		name string
		sig  domain.Signal
	}{
		{"empty symbol", domain.Signal{Side: domain.SideBuy, Price: decimal.NewFromInt(100)}},
		{"invalid side", domain.Signal{Symbol: "ABC", Side: "hold", Price: decimal.NewFromInt(100)}},
		{"zero price", domain.Signal{Symbol: "ABC", Side: domain.SideBuy}},
		{"negative price", domain.Signal{Symbol: "ABC", Side: domain.SideSell, Price: decimal.NewFromInt(-5)}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := newFakeBroker(40000)
			r := newTestResolver(b, defaultPolicy(), nil)

			out := r.Resolve(context.Background(), c.sig)
			if out.Status != domain.StatusRejected {
				t.Errorf("status = %q, want %q", out.Status, domain.StatusRejected)
			}
			if total := b.equityCalls + b.positionCalls + b.placeCalls + b.closeCalls; total != 0 {
				t.Errorf("rejected signal made %d broker calls, want 0", total)
			}
		})
	}
}

func TestResolveSellAlwaysLiquidates(t *testing.T) {
	// A sell must close even when no position is known to exist.
	b := newFakeBroker(40000)
	r := newTestResolver(b, defaultPolicy(), nil)

	out := r.Resolve(context.Background(), domain.Signal{
		Symbol: "XYZ",
		Side:   domain.SideSell,
		Price:  decimal.NewFromInt(50),
	})

	if out.Status != domain.StatusClosed {
		t.Errorf("status = %q, want %q", out.Status, domain.StatusClosed)
	}
	if out.Message != "Closed all positions for XYZ" {
		t.Errorf("message = %q", out.Message)
	}
	if b.closeCalls != 1 {
		t.Errorf("closeCalls = %d, want 1", b.closeCalls)
	}
	if b.placeCalls != 0 {
		t.Errorf("placeCalls = %d, want 0", b.placeCalls)
	}
	if b.lastSymbol != "XYZ" {
		t.Errorf("closed symbol = %q, want XYZ", b.lastSymbol)
	}
}

func TestResolveBuySkipsExistingPosition(t *testing.T) {
	b := newFakeBroker(40000)
	b.positions["ABC"] = &domain.Position{Symbol: "ABC", Qty: decimal.NewFromInt(5)}
	r := newTestResolver(b, defaultPolicy(), nil)

	out := r.Resolve(context.Background(), domain.Signal{
		Symbol: "ABC",
		Side:   domain.SideBuy,
		Price:  decimal.NewFromInt(100),
	})

	if out.Status != domain.StatusSkipped {
		t.Errorf("status = %q, want %q", out.Status, domain.StatusSkipped)
	}
	if out.Message != "Already holding ABC, skipping buy order." {
		t.Errorf("message = %q", out.Message)
	}
	if b.placeCalls != 0 {
		t.Errorf("placeCalls = %d, want 0", b.placeCalls)
	}
}

func TestResolveBuyPlacesSizedOrder(t *testing.T) {
	b := newFakeBroker(40000)
	r := newTestResolver(b, defaultPolicy(), nil)

	out := r.Resolve(context.Background(), domain.Signal{
		Symbol: "ABC",
		Side:   domain.SideBuy,
		Price:  decimal.NewFromInt(100),
	})

	if out.Status != domain.StatusPlaced {
		t.Fatalf("status = %q, want %q", out.Status, domain.StatusPlaced)
	}
	if b.placeCalls != 1 {
		t.Errorf("placeCalls = %d, want 1", b.placeCalls)
	}
	if b.equityCalls != 1 {
		t.Errorf("equityCalls = %d, want 1", b.equityCalls)
	}
	// (40000 × 0.425) ÷ 100 = 170.
	if !b.lastQty.Equal(decimal.NewFromInt(170)) {
		t.Errorf("placed qty = %s, want 170", b.lastQty)
	}
	if b.lastSide != domain.SideBuy {
		t.Errorf("placed side = %q, want buy", b.lastSide)
	}
}

func TestResolveBuyIdempotence(t *testing.T) {
	// Placed then skipped: the broker reflects the first fill before the
	// duplicate signal arrives.
	b := newFakeBroker(40000)
	b.fillOnPlace = true
	r := newTestResolver(b, defaultPolicy(), nil)

	sig := domain.Signal{Symbol: "ABC", Side: domain.SideBuy, Price: decimal.NewFromInt(100)}

	first := r.Resolve(context.Background(), sig)
	if first.Status != domain.StatusPlaced {
		t.Fatalf("first status = %q, want %q", first.Status, domain.StatusPlaced)
	}

	second := r.Resolve(context.Background(), sig)
	if second.Status != domain.StatusSkipped {
		t.Fatalf("second status = %q, want %q", second.Status, domain.StatusSkipped)
	}
	if b.placeCalls != 1 {
		t.Errorf("placeCalls = %d, want 1", b.placeCalls)
	}
}

func TestResolveBuyRejectsZeroQuantity(t *testing.T) {
	// Zero equity (the degraded lookup-failure value) must not produce a
	// zero-quantity order.
	b := newFakeBroker(0)
	r := newTestResolver(b, defaultPolicy(), nil)

	out := r.Resolve(context.Background(), domain.Signal{
		Symbol: "ABC",
		Side:   domain.SideBuy,
		Price:  decimal.NewFromInt(100),
	})

	if out.Status != domain.StatusRejected {
		t.Errorf("status = %q, want %q", out.Status, domain.StatusRejected)
	}
	if b.placeCalls != 0 {
		t.Errorf("placeCalls = %d, want 0", b.placeCalls)
	}
}

func TestResolveBuyFixedAmountSkipsEquityLookup(t *testing.T) {
	b := newFakeBroker(40000)
	r := newTestResolver(b, FixedAmountPolicy{Amount: decimal.NewFromInt(5000)}, nil)

	out := r.Resolve(context.Background(), domain.Signal{
		Symbol: "DEF",
		Side:   domain.SideBuy,
		Price:  decimal.NewFromInt(250),
	})

	if out.Status != domain.StatusPlaced {
		t.Fatalf("status = %q, want %q", out.Status, domain.StatusPlaced)
	}
	if b.equityCalls != 0 {
		t.Errorf("equityCalls = %d, want 0 in fixed-amount mode", b.equityCalls)
	}
	if !b.lastQty.Equal(decimal.NewFromInt(20)) {
		t.Errorf("placed qty = %s, want 20", b.lastQty)
	}
}

func TestResolveConcurrentBuysSameSymbol(t *testing.T) {
	// With the per-symbol lock and a broker that reflects fills
	// immediately, concurrent duplicate buys place exactly one order.
	b := newFakeBroker(40000)
	b.fillOnPlace = true
	r := newTestResolver(b, defaultPolicy(), nil)

	sig := domain.Signal{Symbol: "ABC", Side: domain.SideBuy, Price: decimal.NewFromInt(100)}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Resolve(context.Background(), sig)
		}()
	}
	wg.Wait()

	if b.placeCalls != 1 {
		t.Errorf("placeCalls = %d, want 1", b.placeCalls)
	}
}

func TestResolveRecordsOutcomes(t *testing.T) {
	b := newFakeBroker(40000)
	rec := &captureRecorder{}
	r := newTestResolver(b, defaultPolicy(), rec)

	sig := domain.Signal{Symbol: "ABC", Side: domain.SideBuy, Price: decimal.NewFromInt(100)}
	out := r.Resolve(context.Background(), sig)

	if len(rec.outcomes) != 1 {
		t.Fatalf("recorded %d outcomes, want 1", len(rec.outcomes))
	}
	if rec.outcomes[0].Status != out.Status {
		t.Errorf("recorded status = %q, want %q", rec.outcomes[0].Status, out.Status)
	}
	if rec.signals[0].Symbol != "ABC" {
		t.Errorf("recorded symbol = %q, want ABC", rec.signals[0].Symbol)
	}
}

func TestResolveSurvivesRecorderFailure(t *testing.T) {
	b := newFakeBroker(40000)
	rec := &captureRecorder{err: fmt.Errorf("disk full")}
	r := newTestResolver(b, defaultPolicy(), rec)

	out := r.Resolve(context.Background(), domain.Signal{
		Symbol: "ABC",
		Side:   domain.SideBuy,
		Price:  decimal.NewFromInt(100),
	})

	if out.Status != domain.StatusPlaced {
		t.Errorf("status = %q, want %q despite recorder failure", out.Status, domain.StatusPlaced)
	}
}
