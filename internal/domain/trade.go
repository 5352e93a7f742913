package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceInfinite stands in for the reciprocal of a zero price, so that
// direction-normalized prices stay defined instead of crashing on
// division.
var PriceInfinite = decimal.New(1, 36)

// Trade is a candidate, not-yet-submitted trade description. AmountBase is
// always in base-currency units and PriceQ2B in Quote/Base units; the
// direction decides which currency is spent and which received.
type Trade struct {
	Pair       *TradePair
	TradeType  TradeType
	AmountBase decimal.Decimal
	PriceQ2B   decimal.Decimal
}

// NewTrade validates its inputs up front: negative amounts or prices fail
// here with ErrInvalidTradeParameters, never later during validation.
func NewTrade(pair *TradePair, t TradeType, amountBase, priceQ2B decimal.Decimal) (*Trade, error) {
	if amountBase.IsNegative() || priceQ2B.IsNegative() || amountBase.Mul(priceQ2B).IsNegative() {
		return nil, fmt.Errorf("%w: amountBase=%s priceQ2B=%s", ErrInvalidTradeParameters, amountBase, priceQ2B)
	}
	return &Trade{
		Pair:       pair,
		TradeType:  t,
		AmountBase: amountBase,
		PriceQ2B:   priceQ2B,
	}, nil
}

// AmountQuote is the trade's size in quote-currency units.
func (t *Trade) AmountQuote() decimal.Decimal {
	return t.AmountBase.Mul(t.PriceQ2B)
}

// AmountIn is how much of CoinIn the trade spends.
func (t *Trade) AmountIn() decimal.Decimal {
	if t.TradeType == Q2B {
		return t.AmountQuote()
	}
	return t.AmountBase
}

// AmountOut is how much of CoinOut the trade receives before commission.
func (t *Trade) AmountOut() decimal.Decimal {
	if t.TradeType == Q2B {
		return t.AmountBase
	}
	return t.AmountQuote()
}

// AmountNett is AmountOut less the exchange's commission.
func (t *Trade) AmountNett() decimal.Decimal {
	fee := t.Pair.Exchange.Fee()
	return t.AmountOut().Mul(decimal.NewFromInt(1).Sub(fee))
}

func (t *Trade) CoinIn() Coin {
	return t.Pair.CoinIn(t.TradeType)
}

func (t *Trade) CoinOut() Coin {
	return t.Pair.CoinOut(t.TradeType)
}

// Price is the direction-normalized price in CoinOut/CoinIn units. For Q2B
// this is the reciprocal of PriceQ2B; a zero PriceQ2B yields PriceInfinite.
func (t *Trade) Price() decimal.Decimal {
	if t.TradeType == B2Q {
		return t.PriceQ2B
	}
	if t.PriceQ2B.IsZero() {
		return PriceInfinite
	}
	return decimal.NewFromInt(1).Div(t.PriceQ2B)
}

// PriceInv is the price in CoinIn/CoinOut units.
func (t *Trade) PriceInv() decimal.Decimal {
	if t.TradeType == Q2B {
		return t.PriceQ2B
	}
	if t.PriceQ2B.IsZero() {
		return PriceInfinite
	}
	return decimal.NewFromInt(1).Div(t.PriceQ2B)
}

// OrderKind classifies a trade by how its price sits against the market.
type OrderKind uint8

const (
	OrderKindUnknown OrderKind = iota
	OrderKindMarket
	OrderKindLimit
	OrderKindStop
)

func (k OrderKind) String() string {
	switch k {
	case OrderKindMarket:
		return "market"
	case OrderKindLimit:
		return "limit"
	case OrderKindStop:
		return "stop"
	default:
		return "unknown"
	}
}

// OrderType compares PriceQ2B to the currently matched market price within
// the given tolerance fraction. A buy priced below market rests as a limit
// and above as a stop; for sells the comparison flips. Returns
// OrderKindUnknown when the consumed ladder is empty.
func (t *Trade) OrderType(tolerance decimal.Decimal) OrderKind {
	market, err := t.Pair.SpotPrice(t.TradeType)
	if err != nil {
		return OrderKindUnknown
	}
	if t.PriceQ2B.Sub(market).Abs().LessThanOrEqual(market.Mul(tolerance)) {
		return OrderKindMarket
	}
	below := t.PriceQ2B.LessThan(market)
	if t.TradeType == Q2B {
		if below {
			return OrderKindLimit
		}
		return OrderKindStop
	}
	if below {
		return OrderKindStop
	}
	return OrderKindLimit
}

// ValidationFlags is a bitmask of independent reasons a trade cannot be
// submitted. Zero means the trade is valid; multiple simultaneous failures
// are all reported.
type ValidationFlags uint32

const (
	AmountInIsInvalid ValidationFlags = 1 << iota
	AmountInOutOfRange
	AmountOutIsInvalid
	AmountOutOutOfRange
	PriceIsInvalid
	PriceOutOfRange
	InsufficientBalance
)

// OK reports whether no validation check failed.
func (f ValidationFlags) OK() bool {
	return f == 0
}

func (f ValidationFlags) String() string {
	if f == 0 {
		return "valid"
	}
	names := []struct {
		flag ValidationFlags
		name string
	}{
		{AmountInIsInvalid, "amount-in invalid"},
		{AmountInOutOfRange, "amount-in out of range"},
		{AmountOutIsInvalid, "amount-out invalid"},
		{AmountOutOutOfRange, "amount-out out of range"},
		{PriceIsInvalid, "price invalid"},
		{PriceOutOfRange, "price out of range"},
		{InsufficientBalance, "insufficient balance"},
	}
	var parts []string
	for _, n := range names {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ", ")
}

// Validate runs every submission check and reports all failures at once.
// A non-positive amount sets only the invalid flag, never the range flag.
// Available balance is free funds plus anything held under
// reservedBalanceID plus the hypothetical additionalBalance.
func (t *Trade) Validate(reservedBalanceID string, additionalBalance decimal.Decimal) ValidationFlags {
	var flags ValidationFlags

	in := t.AmountIn()
	switch {
	case !in.IsPositive():
		flags |= AmountInIsInvalid
	case !t.Pair.AmountRangeIn(t.TradeType).Contains(in):
		flags |= AmountInOutOfRange
	}

	out := t.AmountOut()
	switch {
	case !out.IsPositive():
		flags |= AmountOutIsInvalid
	case !t.Pair.AmountRangeOut(t.TradeType).Contains(out):
		flags |= AmountOutOutOfRange
	}

	switch {
	case !t.PriceQ2B.IsPositive():
		flags |= PriceIsInvalid
	case !t.Pair.PriceRange().Contains(t.PriceQ2B):
		flags |= PriceOutOfRange
	}

	available := t.Pair.Exchange.Balance(t.CoinIn().Symbol).AvailableFor(reservedBalanceID, additionalBalance)
	if in.GreaterThan(available) {
		flags |= InsufficientBalance
	}

	return flags
}

// CreateOrder submits the trade to the owning exchange. This is the only
// trade operation that crosses into the network collaborator.
func (t *Trade) CreateOrder(ctx context.Context, fundID string) (*Order, error) {
	res, err := t.Pair.Exchange.CreateOrder(ctx, fundID, t.TradeType, t.Pair.Key(), t.AmountIn(), t.PriceQ2B)
	if err != nil {
		return nil, fmt.Errorf("create order %s: %w", t.Pair, err)
	}
	now := time.Now()
	remaining := t.AmountBase
	if res.Filled {
		remaining = decimal.Zero
	}
	return &Order{
		OrderID:       res.OrderID,
		Pair:          t.Pair,
		TradeType:     t.TradeType,
		AmountBase:    t.AmountBase,
		PriceQ2B:      t.PriceQ2B,
		RemainingBase: remaining,
		Created:       now,
		Updated:       now,
	}, nil
}
