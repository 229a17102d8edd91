// Command tradehook-server receives trading-signal webhooks and turns them
// into orders against the Alpaca brokerage. It loads configuration, wires
// the broker, resolver, and journal, and serves the webhook endpoint until
// interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"tradehook/internal/broker"
	"tradehook/internal/config"
	"tradehook/internal/engine"
	"tradehook/internal/httpapi"
	"tradehook/internal/journal"
	"tradehook/internal/util"
)

func main() {
	// Best-effort .env load for local development; deployed environments
	// set real variables.
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config/tradehook.yaml", "path to configuration file")
	flag.Parse()
	if p := os.Getenv("TRADEHOOK_CONFIG"); p != "" {
		*cfgPath = p
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	jnl, err := openJournal(cfg, log)
	if err != nil {
		return err
	}
	defer jnl.Close()

	b := newBroker(cfg, log)

	policy, err := engine.NewSizingPolicy(cfg.Sizing)
	if err != nil {
		return err
	}

	resolver := engine.NewResolver(b, policy, jnl, log)

	var limiter *util.RateLimiter
	if cfg.Webhook.RateLimitPerMin > 0 {
		limiter = util.NewRateLimiter(cfg.Webhook.RateLimitPerMin, cfg.Webhook.RateLimitBurst)
	}

	api := httpapi.NewServer(resolver, jnl, cfg.Webhook.Token, limiter, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("tradehook-server listening",
			"addr", srv.Addr,
			"broker", b.Name(),
			"sizing", cfg.Sizing.Mode,
		)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func openJournal(cfg *config.Config, log *slog.Logger) (journal.Journal, error) {
	if cfg.Journal.SQLitePath == "" {
		return journal.Nop{}, nil
	}
	jnl, err := journal.OpenSQLite(cfg.Journal.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening decision journal: %w", err)
	}
	log.Info("decision journal enabled", "path", cfg.Journal.SQLitePath)
	return jnl, nil
}

func newBroker(cfg *config.Config, log *slog.Logger) broker.Broker {
	if cfg.Trading.PaperMode {
		equity := cfg.Trading.PaperEquity
		if equity <= 0 {
			equity = 100000
		}
		log.Info("paper mode enabled", "equity", equity)
		return broker.NewPaperBroker(decimal.NewFromFloat(equity))
	}

	timeout := time.Duration(cfg.Alpaca.RequestTimeoutSecs) * time.Second
	return broker.NewAlpacaBroker(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, timeout, log)
}
