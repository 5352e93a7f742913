package stream

import (
	"context"
	"log/slog"
	"sync"

	"tradedesk/internal/domain"
)

// seriesStream retains the most recent items delivered by a feed and
// serves copies. It backs the candle and user-data subscriptions, which
// are append-only histories rather than reconciled books.
type seriesStream[T any] struct {
	name  string
	limit int

	mu     sync.Mutex
	items  []T
	closed bool

	feed   domain.Feed[T]
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func openSeries[T any](ctx context.Context, name string, feed domain.Feed[T], limit int) *seriesStream[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &seriesStream[T]{
		name:   name,
		limit:  limit,
		feed:   feed,
		cancel: cancel,
	}
	s.wg.Add(1)
	go s.readLoop(ctx)
	return s
}

func (s *seriesStream[T]) readLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		item, err := s.feed.Read()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("series feed closed", slog.String("stream", s.name), slog.Any("error", err))
			}
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
			return
		}
		s.mu.Lock()
		s.items = append(s.items, item)
		if s.limit > 0 && len(s.items) > s.limit {
			s.items = s.items[len(s.items)-s.limit:]
		}
		s.mu.Unlock()
	}
}

func (s *seriesStream[T]) Snapshot() ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, domain.ErrStreamClosed
	}
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *seriesStream[T]) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *seriesStream[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.feed.Close()
	s.wg.Wait()
}

// latestStream keeps only the newest item from a feed. It backs the
// ticker subscription.
type latestStream[T any] struct {
	name string

	mu     sync.Mutex
	last   T
	closed bool

	feed   domain.Feed[T]
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func openLatest[T any](ctx context.Context, name string, feed domain.Feed[T]) *latestStream[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &latestStream[T]{
		name:   name,
		feed:   feed,
		cancel: cancel,
	}
	s.wg.Add(1)
	go s.readLoop(ctx)
	return s
}

func (s *latestStream[T]) readLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		item, err := s.feed.Read()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("latest feed closed", slog.String("stream", s.name), slog.Any("error", err))
			}
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
			return
		}
		s.mu.Lock()
		s.last = item
		s.mu.Unlock()
	}
}

func (s *latestStream[T]) Snapshot() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		var zero T
		return zero, domain.ErrStreamClosed
	}
	return s.last, nil
}

func (s *latestStream[T]) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *latestStream[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.feed.Close()
	s.wg.Wait()
}

// NewCandleCache caches one candle subscription per pair, each retaining
// the most recent limit bars.
func NewCandleCache(ctx context.Context, ex domain.Exchange, interval string, limit int) *Cache[domain.PairKey, []domain.Candle] {
	build := func(ctx context.Context, key domain.PairKey) (Subscription[[]domain.Candle], error) {
		feed, err := ex.CandleFeed(ctx, key, interval)
		if err != nil {
			return nil, domain.NewNetworkError("candle feed "+key.String(), err)
		}
		return openSeries(ctx, "candles "+key.String(), feed, limit), nil
	}
	return NewCache(ctx, build, nil)
}

// NewTickerCache caches one ticker subscription per pair, serving the
// latest quote.
func NewTickerCache(ctx context.Context, ex domain.Exchange) *Cache[domain.PairKey, domain.TickerQuote] {
	build := func(ctx context.Context, key domain.PairKey) (Subscription[domain.TickerQuote], error) {
		feed, err := ex.TickerFeed(ctx, key)
		if err != nil {
			return nil, domain.NewNetworkError("ticker feed "+key.String(), err)
		}
		return openLatest(ctx, "ticker "+key.String(), feed), nil
	}
	return NewCache(ctx, build, nil)
}

// userDataKey is the single key of the user-data cache; the account stream
// is not per-pair.
type userDataKey struct{}

// UserDataCache holds the one account-event subscription for an exchange.
type UserDataCache struct {
	cache *Cache[userDataKey, []domain.BalanceUpdate]
}

// NewUserDataCache caches the exchange's user-data subscription, retaining
// the most recent limit events.
func NewUserDataCache(ctx context.Context, ex domain.Exchange, limit int) *UserDataCache {
	build := func(ctx context.Context, _ userDataKey) (Subscription[[]domain.BalanceUpdate], error) {
		feed, err := ex.UserDataFeed(ctx)
		if err != nil {
			return nil, domain.NewNetworkError("user data feed "+ex.Name(), err)
		}
		return openSeries(ctx, "user data "+ex.Name(), feed, limit), nil
	}
	return &UserDataCache{cache: NewCache(ctx, build, nil)}
}

// Events returns a copy of the buffered account events.
func (u *UserDataCache) Events() []domain.BalanceUpdate {
	return u.cache.Get(userDataKey{})
}

// Close tears down the account subscription.
func (u *UserDataCache) Close() {
	u.cache.Close()
}
