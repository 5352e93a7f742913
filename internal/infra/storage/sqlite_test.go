package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk/internal/domain"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testFill(tradeID, orderID string) *domain.TradeCompleted {
	return &domain.TradeCompleted{
		TradeID:         tradeID,
		OrderID:         orderID,
		Key:             domain.PairKey{Base: "BTC", Quote: "USDT", Exchange: "kucoin"},
		TradeType:       domain.B2Q,
		AmountBase:      decimal.RequireFromString("0.5"),
		PriceQ2B:        decimal.RequireFromString("50000"),
		CommissionQuote: decimal.RequireFromString("25"),
		Time:            time.Now().UTC().Truncate(time.Second),
	}
}

func TestStorage_SaveFillDedup(t *testing.T) {
	s := openTestStorage(t)

	require.NoError(t, s.SaveFill(testFill("t1", "o1")))
	require.NoError(t, s.SaveFill(testFill("t1", "o1")), "duplicate TradeID must be a no-op")
	require.NoError(t, s.SaveFill(testFill("t2", "o1")))

	fills, err := s.FillsForOrder("o1")
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, "t1", fills[0].TradeID)
	assert.True(t, fills[0].AmountBase.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, fills[0].PriceQ2B.Equal(decimal.RequireFromString("50000")))
}

func TestStorage_RecentFills(t *testing.T) {
	s := openTestStorage(t)

	for i, id := range []string{"t1", "t2", "t3"} {
		f := testFill(id, "o1")
		f.Time = time.Unix(int64(1700000000+i), 0)
		require.NoError(t, s.SaveFill(f))
	}

	recent, err := s.RecentFills(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "t3", recent[0].TradeID)
	assert.Equal(t, "t2", recent[1].TradeID)
}

type nameOnlyExchange struct{ domain.Exchange }

func (nameOnlyExchange) Name() string { return "kucoin" }

func testOrder(orderID string) *domain.Order {
	pair, err := domain.NewTradePair(
		domain.Coin{Symbol: "BTC", Exchange: "kucoin"},
		domain.Coin{Symbol: "USDT", Exchange: "kucoin"},
		nameOnlyExchange{}, domain.Range{}, domain.Range{}, domain.Range{},
	)
	if err != nil {
		panic(err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.Order{
		OrderID:       orderID,
		Pair:          pair,
		TradeType:     domain.Q2B,
		AmountBase:    decimal.RequireFromString("1"),
		PriceQ2B:      decimal.RequireFromString("50000"),
		RemainingBase: decimal.RequireFromString("1"),
		Created:       now,
		Updated:       now,
	}
}

func TestStorage_SaveOrderUpserts(t *testing.T) {
	s := openTestStorage(t)

	o := testOrder("o1")
	require.NoError(t, s.SaveOrder(o))

	o.RemainingBase = decimal.Zero
	require.NoError(t, s.SaveOrder(o))

	orders, err := s.Orders()
	require.NoError(t, err)
	require.Len(t, orders, 1, "same OrderID must update, not duplicate")
	assert.True(t, orders[0].RemainingBase.IsZero())
}

func TestStorage_SaveOrderCompleted(t *testing.T) {
	s := openTestStorage(t)

	oc := domain.NewOrderCompleted(testOrder("o1"))
	oc.AddFill(testFill("t1", "o1"))
	oc.AddFill(testFill("t2", "o1"))
	require.NoError(t, s.SaveOrderCompleted(oc))

	orders, err := s.Orders()
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	fills, err := s.FillsForOrder("o1")
	require.NoError(t, err)
	assert.Len(t, fills, 2)
}
