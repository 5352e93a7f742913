package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is a trade that an exchange has accepted. Identity is
// (OrderID, Pair, TradeType). Fake orders exist only locally and never
// touch the network.
type Order struct {
	OrderID       string
	Pair          *TradePair
	TradeType     TradeType
	AmountBase    decimal.Decimal
	PriceQ2B      decimal.Decimal
	RemainingBase decimal.Decimal
	Created       time.Time
	Updated       time.Time
	Fake          bool
}

// NewFakeOrder builds a simulated order from a candidate trade. It is
// assigned a local ID and marked Fake so downstream consumers can always
// tell it apart from real submissions.
func NewFakeOrder(t *Trade) *Order {
	now := time.Now()
	return &Order{
		OrderID:       "fake-" + uuid.NewString(),
		Pair:          t.Pair,
		TradeType:     t.TradeType,
		AmountBase:    t.AmountBase,
		PriceQ2B:      t.PriceQ2B,
		RemainingBase: t.AmountBase,
		Created:       now,
		Updated:       now,
		Fake:          true,
	}
}

// IsOpen reports whether any amount remains unfilled.
func (o *Order) IsOpen() bool {
	return o.RemainingBase.IsPositive()
}

// Cancel withdraws the order. Fake orders are cancelled locally; real ones
// go through the exchange.
func (o *Order) Cancel(ctx context.Context) error {
	if !o.Fake {
		if err := o.Pair.Exchange.CancelOrder(ctx, o.Pair.Key(), o.OrderID); err != nil {
			return fmt.Errorf("cancel order %s: %w", o.OrderID, err)
		}
	}
	o.RemainingBase = decimal.Zero
	o.Updated = time.Now()
	return nil
}

// FillFakeOrder cancels the fake order and synthesizes a completed fill
// directly into the exchange's trade history, bypassing the network. The
// fill stays marked Fake.
func (o *Order) FillFakeOrder() (*TradeCompleted, error) {
	if !o.Fake {
		return nil, ErrNotFakeOrder
	}
	fee := o.Pair.Exchange.Fee()
	fill := &TradeCompleted{
		TradeID:         "fake-" + uuid.NewString(),
		OrderID:         o.OrderID,
		Key:             o.Pair.Key(),
		TradeType:       o.TradeType,
		AmountBase:      o.AmountBase,
		PriceQ2B:        o.PriceQ2B,
		CommissionQuote: o.AmountBase.Mul(o.PriceQ2B).Mul(fee),
		Time:            time.Now(),
		Fake:            true,
	}
	o.RemainingBase = decimal.Zero
	o.Updated = fill.Time
	o.Pair.Exchange.RecordTrade(fill)
	return fill, nil
}

// TradeCompleted is an immutable fill record.
type TradeCompleted struct {
	TradeID         string
	OrderID         string
	Key             PairKey
	TradeType       TradeType
	AmountBase      decimal.Decimal
	PriceQ2B        decimal.Decimal
	CommissionQuote decimal.Decimal
	Time            time.Time
	Fake            bool
}

// AmountQuote is the fill's size in quote-currency units.
func (f *TradeCompleted) AmountQuote() decimal.Decimal {
	return f.AmountBase.Mul(f.PriceQ2B)
}

// Commission converts the quote-denominated commission into units of the
// currency the fill pays out: base for Q2B, quote for B2Q.
func (f *TradeCompleted) Commission() decimal.Decimal {
	if f.TradeType == B2Q {
		return f.CommissionQuote
	}
	if f.PriceQ2B.IsZero() {
		return decimal.Zero
	}
	return f.CommissionQuote.Div(f.PriceQ2B)
}

// OrderCompleted is an order that has been partially or fully filled. It
// owns its fills keyed by TradeID in insertion order; fills are only ever
// added, never removed.
type OrderCompleted struct {
	Order *Order

	tradeIDs []string
	fills    map[string]*TradeCompleted
}

func NewOrderCompleted(o *Order) *OrderCompleted {
	return &OrderCompleted{
		Order: o,
		fills: make(map[string]*TradeCompleted),
	}
}

// AddFill records a fill. A TradeID already present is ignored, which
// makes replayed exchange history idempotent.
func (oc *OrderCompleted) AddFill(f *TradeCompleted) {
	if _, ok := oc.fills[f.TradeID]; ok {
		return
	}
	oc.tradeIDs = append(oc.tradeIDs, f.TradeID)
	oc.fills[f.TradeID] = f
}

// Fill returns the fill with the given TradeID.
func (oc *OrderCompleted) Fill(tradeID string) (*TradeCompleted, bool) {
	f, ok := oc.fills[tradeID]
	return f, ok
}

// Fills returns the fills in insertion order.
func (oc *OrderCompleted) Fills() []*TradeCompleted {
	out := make([]*TradeCompleted, 0, len(oc.tradeIDs))
	for _, id := range oc.tradeIDs {
		out = append(out, oc.fills[id])
	}
	return out
}

// FilledBase sums the base amount across all fills.
func (oc *OrderCompleted) FilledBase() decimal.Decimal {
	total := decimal.Zero
	for _, id := range oc.tradeIDs {
		total = total.Add(oc.fills[id].AmountBase)
	}
	return total
}

// PriceQ2B is the best individual fill price: the minimum for B2Q, the
// maximum for Q2B. This is deliberately not a volume-weighted average; the
// approximation is preserved for compatibility with existing consumers.
func (oc *OrderCompleted) PriceQ2B() (decimal.Decimal, bool) {
	if len(oc.tradeIDs) == 0 {
		return decimal.Zero, false
	}
	best := oc.fills[oc.tradeIDs[0]].PriceQ2B
	for _, id := range oc.tradeIDs[1:] {
		p := oc.fills[id].PriceQ2B
		if oc.Order.TradeType == B2Q && p.LessThan(best) {
			best = p
		}
		if oc.Order.TradeType == Q2B && p.GreaterThan(best) {
			best = p
		}
	}
	return best, true
}
