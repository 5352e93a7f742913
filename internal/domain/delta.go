package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is one order-book level as delivered by an exchange.
type PriceLevel struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// Snapshot is a full order book fetched over REST, anchored at a server
// sequence number.
type Snapshot struct {
	SequenceNo uint64
	Asks       []PriceLevel
	Bids       []PriceLevel
}

// Delta is one order-book change covering the server sequence span
// [SeqBegin, SeqEnd]. A zero Qty removes the level. Adapters that receive
// batched updates flatten them into per-level deltas before handing them
// to the core.
type Delta struct {
	SeqBegin uint64
	SeqEnd   uint64
	Side     Side
	Price    decimal.Decimal
	Qty      decimal.Decimal
}

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime   time.Time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	VolumeBase decimal.Decimal
}

// TickerQuote is a best-bid/offer observation.
type TickerQuote struct {
	Bid  decimal.Decimal
	Ask  decimal.Decimal
	Last decimal.Decimal
	Time time.Time
}

// BalanceUpdate is one account-balance event from the user-data stream.
type BalanceUpdate struct {
	Symbol   string
	Free     decimal.Decimal
	Reserved decimal.Decimal
	Time     time.Time
}
