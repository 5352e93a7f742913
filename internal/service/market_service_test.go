package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk/internal/domain"
	"tradedesk/internal/stream"
)

type staticExchange struct{ domain.Exchange }

func (staticExchange) Name() string         { return "testex" }
func (staticExchange) Fee() decimal.Decimal { return decimal.Zero }

// bookSub serves a fixed book copy.
type bookSub struct {
	depth *domain.MarketDepth
}

func (b *bookSub) Snapshot() (*domain.MarketDepth, error) { return b.depth.Clone(), nil }
func (b *bookSub) Alive() bool                            { return true }
func (b *bookSub) Close()                                 {}

func fixedBookCache(t *testing.T, depth *domain.MarketDepth, buildErr error) *stream.Cache[domain.PairKey, *domain.MarketDepth] {
	t.Helper()
	return stream.NewCache(context.Background(),
		func(_ context.Context, _ domain.PairKey) (stream.Subscription[*domain.MarketDepth], error) {
			if buildErr != nil {
				return nil, buildErr
			}
			return &bookSub{depth: depth}, nil
		},
		func() *domain.MarketDepth { return domain.NewMarketDepth() },
	)
}

func newPair(t *testing.T, base, quote string) *domain.TradePair {
	t.Helper()
	pair, err := domain.NewTradePair(
		domain.Coin{Symbol: base, Exchange: "testex"},
		domain.Coin{Symbol: quote, Exchange: "testex"},
		staticExchange{}, domain.Range{}, domain.Range{}, domain.Range{},
	)
	require.NoError(t, err)
	return pair
}

func TestMarketService_RegisterKeepsIdentity(t *testing.T) {
	svc := NewMarketService(staticExchange{}, fixedBookCache(t, domain.NewMarketDepth(), nil), decimal.Zero)

	first := svc.Register(newPair(t, "BTC", "USDT"))
	second := svc.Register(newPair(t, "BTC", "USDT"))

	assert.Same(t, first, second, "re-registering a key updates the existing pair")
	assert.Equal(t, 1, len(svc.Pairs()))
}

func TestMarketService_PairsSortedByKey(t *testing.T) {
	svc := NewMarketService(staticExchange{}, fixedBookCache(t, domain.NewMarketDepth(), nil), decimal.Zero)
	svc.Register(newPair(t, "ETH", "USDT"))
	svc.Register(newPair(t, "BTC", "USDT"))

	pairs := svc.Pairs()
	require.Len(t, pairs, 2)
	assert.Equal(t, "BTC", pairs[0].Base.Symbol)
	assert.Equal(t, "ETH", pairs[1].Base.Symbol)
}

func TestMarketService_RefreshDepth(t *testing.T) {
	depth := domain.NewMarketDepth()
	depth.UpsertOffer(domain.SideAsk, decimal.RequireFromString("100"), decimal.RequireFromString("1"))
	depth.SequenceNo = 5

	svc := NewMarketService(staticExchange{}, fixedBookCache(t, depth, nil), decimal.Zero)
	pair := svc.Register(newPair(t, "BTC", "USDT"))

	require.NoError(t, svc.RefreshDepth(pair.Key()))
	got := pair.Depth()
	assert.Equal(t, uint64(5), got.SequenceNo)
	assert.Equal(t, 1, got.Asks.Len())
}

func TestMarketService_RefreshDepthUnknownPair(t *testing.T) {
	svc := NewMarketService(staticExchange{}, fixedBookCache(t, domain.NewMarketDepth(), nil), decimal.Zero)
	err := svc.RefreshDepth(domain.PairKey{Base: "XRP", Quote: "USDT", Exchange: "testex"})
	assert.ErrorIs(t, err, domain.ErrInvalidPair)
}

func TestMarketService_WarmUp(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		depth := domain.NewMarketDepth()
		depth.SequenceNo = 9
		svc := NewMarketService(staticExchange{}, fixedBookCache(t, depth, nil), decimal.Zero)
		pair := svc.Register(newPair(t, "BTC", "USDT"))
		svc.Register(newPair(t, "ETH", "USDT"))

		require.NoError(t, svc.WarmUp(context.Background()))
		assert.Equal(t, uint64(9), pair.Depth().SequenceNo)
	})

	t.Run("construction failure surfaces", func(t *testing.T) {
		svc := NewMarketService(staticExchange{}, fixedBookCache(t, nil, errors.New("dial failed")), decimal.Zero)
		svc.Register(newPair(t, "BTC", "USDT"))
		assert.Error(t, svc.WarmUp(context.Background()))
	})
}

func TestMarketService_OrderKind(t *testing.T) {
	depth := domain.NewMarketDepth()
	depth.UpsertOffer(domain.SideAsk, decimal.RequireFromString("100"), decimal.RequireFromString("1"))
	depth.SequenceNo = 3

	svc := NewMarketService(staticExchange{}, fixedBookCache(t, depth, nil), decimal.RequireFromString("0.001"))
	pair := svc.Register(newPair(t, "BTC", "USDT"))
	require.NoError(t, svc.RefreshDepth(pair.Key()))

	atMarket, err := domain.NewTrade(pair, domain.Q2B, decimal.RequireFromString("1"), decimal.RequireFromString("100.05"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderKindMarket, svc.OrderKind(atMarket))

	belowMarket, err := domain.NewTrade(pair, domain.Q2B, decimal.RequireFromString("1"), decimal.RequireFromString("95"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderKindLimit, svc.OrderKind(belowMarket))
}
