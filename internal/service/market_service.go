// Package service coordinates the pair registry with the stream caches.
package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tradedesk/internal/domain"
	"tradedesk/internal/stream"
)

// MarketService owns the registry of trade pairs and keeps their books
// current from the order-book cache. Pairs are created once and updated in
// place, so references handed out stay valid.
type MarketService struct {
	exchange  domain.Exchange
	books     *stream.Cache[domain.PairKey, *domain.MarketDepth]
	tolerance decimal.Decimal

	mu    sync.RWMutex
	pairs map[domain.PairKey]*domain.TradePair
}

// NewMarketService builds the registry. tolerance is the price fraction
// within which a trade still classifies as a market order.
func NewMarketService(ex domain.Exchange, books *stream.Cache[domain.PairKey, *domain.MarketDepth], tolerance decimal.Decimal) *MarketService {
	return &MarketService{
		exchange:  ex,
		books:     books,
		tolerance: tolerance,
		pairs:     make(map[domain.PairKey]*domain.TradePair),
	}
}

// Exchange returns the venue this service trades on.
func (m *MarketService) Exchange() domain.Exchange {
	return m.exchange
}

// OrderKind classifies a trade's price against the current market using
// the configured tolerance.
func (m *MarketService) OrderKind(tr *domain.Trade) domain.OrderKind {
	return tr.OrderType(m.tolerance)
}

// Register adds a pair to the registry. If the key is already present the
// existing pair is updated in place from the given one and returned.
func (m *MarketService) Register(pair *domain.TradePair) *domain.TradePair {
	key := pair.Key()
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.pairs[key]; ok {
		existing.Update(pair)
		return existing
	}
	m.pairs[key] = pair
	return pair
}

// Pair returns the registered pair for key.
func (m *MarketService) Pair(key domain.PairKey) (*domain.TradePair, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pairs[key]
	return p, ok
}

// Pairs returns every registered pair in stable key order.
func (m *MarketService) Pairs() []*domain.TradePair {
	m.mu.RLock()
	keys := make([]domain.PairKey, 0, len(m.pairs))
	for k := range m.pairs {
		keys = append(keys, k)
	}
	m.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.TradePair, 0, len(keys))
	for _, k := range keys {
		if p, ok := m.pairs[k]; ok {
			out = append(out, p)
		}
	}
	return out
}

// RefreshDepth pulls the current book copy from the cache into the
// registered pair. A dead stream yields an empty book and a rebuilt
// subscription on the next refresh.
func (m *MarketService) RefreshDepth(key domain.PairKey) error {
	p, ok := m.Pair(key)
	if !ok {
		return domain.ErrInvalidPair
	}
	p.ReplaceDepth(m.books.Get(key))
	return nil
}

// RefreshAll refreshes every registered pair's book.
func (m *MarketService) RefreshAll() {
	for _, p := range m.Pairs() {
		if err := m.RefreshDepth(p.Key()); err != nil {
			slog.Warn("depth refresh failed", slog.String("pair", p.String()), slog.Any("error", err))
		}
	}
}

// WarmUp concurrently opens a book subscription for every registered pair
// and reports the first failure. Unlike RefreshAll it surfaces
// construction errors, so startup can fail loudly instead of serving
// empty books.
func (m *MarketService) WarmUp(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	for _, p := range m.Pairs() {
		key := p.Key()
		g.Go(func() error {
			if err := m.books.Ensure(key); err != nil {
				return err
			}
			return m.RefreshDepth(key)
		})
	}
	return g.Wait()
}

// Close tears down every book subscription.
func (m *MarketService) Close() {
	m.books.Close()
}
