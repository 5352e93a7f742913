package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Feed is a blocking message stream backed by an exchange socket. Read
// returns the next message, or an error once the feed dies or its context
// is cancelled. Implementations live under internal/infra.
type Feed[T any] interface {
	Read() (T, error)
	Close() error
}

// Exchange is the collaborator contract the core consumes. One
// implementation per venue lives under internal/infra; tests substitute
// in-memory fakes.
type Exchange interface {
	Name() string

	// Fee is the taker commission as a fraction, e.g. 0.001 for 0.1%.
	Fee() decimal.Decimal

	// OrderBookSnapshot performs the blocking REST full-depth request.
	OrderBookSnapshot(ctx context.Context, key PairKey) (*Snapshot, error)

	DepthFeed(ctx context.Context, key PairKey) (Feed[Delta], error)
	CandleFeed(ctx context.Context, key PairKey, interval string) (Feed[Candle], error)
	TickerFeed(ctx context.Context, key PairKey) (Feed[TickerQuote], error)
	UserDataFeed(ctx context.Context) (Feed[BalanceUpdate], error)

	CreateOrder(ctx context.Context, fundID string, tradeType TradeType, key PairKey, amountIn, priceQ2B decimal.Decimal) (*OrderResult, error)
	CancelOrder(ctx context.Context, key PairKey, orderID string) error

	// Balance returns the live balance record for a coin symbol. The
	// record is shared and internally synchronized.
	Balance(symbol string) *Balance

	// RecordTrade appends a fill to the exchange's trade history. The
	// simulation path uses it to synthesize fills for fake orders.
	RecordTrade(fill *TradeCompleted)
}

// OrderResult is the exchange's answer to an order submission.
type OrderResult struct {
	OrderID  string
	TradeIDs []string
	Filled   bool
}
