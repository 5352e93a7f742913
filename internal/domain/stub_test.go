package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// fakeExchange is an in-memory Exchange for tests. Feeds are unsupported;
// order submissions succeed with a deterministic ID unless failCreate is
// set.
type fakeExchange struct {
	name       string
	fee        decimal.Decimal
	balances   *BalanceBook
	fills      []*TradeCompleted
	cancelled  []string
	failCreate bool
	nextOrder  int
}

func newFakeExchange(fee string) *fakeExchange {
	return &fakeExchange{
		name:     "testex",
		fee:      decimal.RequireFromString(fee),
		balances: NewBalanceBook(),
	}
}

func (f *fakeExchange) Name() string         { return f.name }
func (f *fakeExchange) Fee() decimal.Decimal { return f.fee }

func (f *fakeExchange) Balance(sym string) *Balance {
	return f.balances.Get(sym)
}

func (f *fakeExchange) RecordTrade(fill *TradeCompleted) {
	f.fills = append(f.fills, fill)
}

func (f *fakeExchange) OrderBookSnapshot(context.Context, PairKey) (*Snapshot, error) {
	return nil, errors.New("not supported")
}

func (f *fakeExchange) DepthFeed(context.Context, PairKey) (Feed[Delta], error) {
	return nil, errors.New("not supported")
}

func (f *fakeExchange) CandleFeed(context.Context, PairKey, string) (Feed[Candle], error) {
	return nil, errors.New("not supported")
}

func (f *fakeExchange) TickerFeed(context.Context, PairKey) (Feed[TickerQuote], error) {
	return nil, errors.New("not supported")
}

func (f *fakeExchange) UserDataFeed(context.Context) (Feed[BalanceUpdate], error) {
	return nil, errors.New("not supported")
}

func (f *fakeExchange) CreateOrder(_ context.Context, _ string, _ TradeType, _ PairKey, _, _ decimal.Decimal) (*OrderResult, error) {
	if f.failCreate {
		return nil, errors.New("rejected")
	}
	f.nextOrder++
	return &OrderResult{OrderID: fmt.Sprintf("order-%d", f.nextOrder)}, nil
}

func (f *fakeExchange) CancelOrder(_ context.Context, _ PairKey, orderID string) error {
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// testPair builds a BTC/USDT pair with generous ranges and an optional
// pre-filled book. Levels are (price, amountBase) pairs.
func testPair(ex Exchange, asks, bids [][2]string) *TradePair {
	base := Coin{Symbol: "BTC", Exchange: "testex", DefaultTradeAmount: dec("0.5")}
	quote := Coin{Symbol: "USDT", Exchange: "testex", DefaultTradeAmount: dec("1000")}
	pair, err := NewTradePair(base, quote, ex,
		Range{Min: dec("0.0001"), Max: dec("1000")},
		Range{Min: dec("1"), Max: dec("10000000")},
		Range{Min: dec("1"), Max: dec("1000000")},
	)
	if err != nil {
		panic(err)
	}
	depth := NewMarketDepth()
	for _, lv := range asks {
		depth.UpsertOffer(SideAsk, dec(lv[0]), dec(lv[1]))
	}
	for _, lv := range bids {
		depth.UpsertOffer(SideBid, dec(lv[0]), dec(lv[1]))
	}
	pair.ReplaceDepth(depth)
	return pair
}
