// Package app wires configuration, storage, the exchange client and the
// stream caches into a runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"

	"tradedesk/internal/domain"
	"tradedesk/internal/infra"
	"tradedesk/internal/infra/kucoin"
	"tradedesk/internal/infra/storage"
	"tradedesk/internal/service"
	"tradedesk/internal/stream"
)

// App holds every long-lived component.
type App struct {
	Config   *infra.Config
	Logger   *slog.Logger
	Store    *storage.Storage
	Exchange *kucoin.Client
	Market   *service.MarketService
	Candles  *stream.Cache[domain.PairKey, []domain.Candle]
	Tickers  *stream.Cache[domain.PairKey, domain.TickerQuote]
	UserData *stream.UserDataCache
}

// New bootstraps the application from the config file at path. Streams
// live under ctx; cancelling it tears down every socket.
func New(ctx context.Context, configPath string) (*App, error) {
	// missing .env is fine, secrets may come from the real environment
	godotenv.Load()

	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	ex := kucoin.NewClient(cfg, store)

	books := stream.NewOrderBookCache(ctx, ex, stream.Options{
		PendingCap: cfg.Stream.PendingDeltaCap,
		GapPolicy:  stream.GapPolicy(cfg.Stream.GapPolicy),
	})
	market := service.NewMarketService(ex, books, cfg.Trading.PriceTolerance)

	for _, ps := range cfg.Exchange.Pairs {
		pair, err := buildPair(ex, ps)
		if err != nil {
			return nil, fmt.Errorf("pair %s-%s: %w", ps.Base, ps.Quote, err)
		}
		market.Register(pair)
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Exchange: ex,
		Market:   market,
		Candles:  stream.NewCandleCache(ctx, ex, cfg.Stream.CandleInterval, cfg.Stream.CandleLimit),
		Tickers:  stream.NewTickerCache(ctx, ex),
		UserData: stream.NewUserDataCache(ctx, ex, cfg.Stream.UserDataLimit),
	}

	logger.Info("application bootstrapped",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("exchange", cfg.Exchange.Name),
		slog.Int("pairs", len(cfg.Exchange.Pairs)))
	return a, nil
}

func buildPair(ex domain.Exchange, ps infra.PairSettings) (*domain.TradePair, error) {
	base := domain.Coin{
		Symbol:             ps.Base,
		Exchange:           ex.Name(),
		DefaultTradeAmount: ps.DefaultAmountBase,
	}
	quote := domain.Coin{
		Symbol:             ps.Quote,
		Exchange:           ex.Name(),
		DefaultTradeAmount: ps.DefaultAmountQuote,
	}
	return domain.NewTradePair(base, quote, ex,
		domain.Range{Min: ps.AmountMinBase, Max: ps.AmountMaxBase},
		domain.Range{Min: ps.AmountMinQuote, Max: ps.AmountMaxQuote},
		domain.Range{Min: ps.PriceMin, Max: ps.PriceMax},
	)
}

// Close releases sockets and the database. Safe to call once.
func (a *App) Close() {
	a.Market.Close()
	a.Candles.Close()
	a.Tickers.Close()
	a.UserData.Close()
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("closing storage", slog.Any("error", err))
	}
}
