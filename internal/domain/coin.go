// Package domain holds the exchange-independent market model: coins,
// pairs, order-book ladders, trades and their economics. Everything here
// is pure state and arithmetic; transport lives under internal/infra and
// stream reconciliation under internal/stream.
package domain

import (
	"github.com/shopspring/decimal"
)

// Coin is one currency as listed on one exchange.
type Coin struct {
	Symbol   string
	Exchange string

	// DefaultTradeAmount is the operator-configured default order size,
	// denominated in this coin's own units.
	DefaultTradeAmount decimal.Decimal
}

func (c Coin) Equal(rhs Coin) bool {
	return c.Symbol == rhs.Symbol && c.Exchange == rhs.Exchange
}

// PairKey identifies a trading pair on an exchange. It is comparable and
// used as a map key throughout.
type PairKey struct {
	Base     string
	Quote    string
	Exchange string
}

// String renders the fully qualified form, e.g. "BTC-USDT@kucoin".
func (k PairKey) String() string {
	return k.Base + "-" + k.Quote + "@" + k.Exchange
}

// Symbol renders the exchange-facing form, e.g. "BTC-USDT".
func (k PairKey) Symbol() string {
	return k.Base + "-" + k.Quote
}

// Range is a half-open interval [Min, Max). A zero Max means unbounded
// above, so the zero Range accepts any non-negative value above Min.
type Range struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

func (r Range) Contains(v decimal.Decimal) bool {
	if v.LessThan(r.Min) {
		return false
	}
	if r.Max.IsZero() {
		return true
	}
	return v.LessThan(r.Max)
}

// Side of the order book.
type Side uint8

const (
	SideAsk Side = iota
	SideBid
)

func (s Side) String() string {
	if s == SideAsk {
		return "ask"
	}
	return "bid"
}

// TradeType is the direction of a trade on a pair. Q2B spends quote to buy
// base; B2Q sells base for quote.
type TradeType uint8

const (
	Q2B TradeType = iota
	B2Q
)

func (t TradeType) String() string {
	if t == Q2B {
		return "quote-to-base"
	}
	return "base-to-quote"
}

func (t TradeType) Opposite() TradeType {
	if t == Q2B {
		return B2Q
	}
	return Q2B
}
