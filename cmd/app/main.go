package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradedesk/internal/app"
	"tradedesk/internal/infra"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. System Bootstrapping
	a, err := app.New(ctx, *configPath)
	if err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer a.Close()

	// 4. Warm up one book subscription per configured pair
	if err := a.Market.WarmUp(ctx); err != nil {
		slog.Error("❌ Warm-up failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.InfoContext(ctx, "✅ Order books live", slog.Int("pairs", len(a.Market.Pairs())))

	slog.InfoContext(ctx, "✨ Trade desk fully operational. Press Ctrl+C to exit.")

	// 5. Periodic market report until shutdown
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("🛑 Shutting down")
			return
		case <-ticker.C:
			a.Market.RefreshAll()
			for _, p := range a.Market.Pairs() {
				spread, err := p.Spread()
				if err != nil {
					slog.Warn("spread unavailable", slog.String("pair", p.String()), slog.Any("error", err))
					continue
				}
				slog.Info("market",
					slog.String("pair", p.String()),
					slog.String("spread", spread.String()),
					slog.Uint64("seq", p.Depth().SequenceNo))
			}
			m := infra.GlobalMetrics.Snapshot()
			slog.Info("metrics",
				slog.Uint64("deltas_applied", m.DeltasApplied),
				slog.Uint64("sequence_gaps", m.SequenceGaps),
				slog.Uint64("snapshot_fetches", m.SnapshotFetches),
				slog.Int("streams_active", int(m.ActiveStreams)))
		}
	}
}
