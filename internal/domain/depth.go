package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MarketDepth is both ladders of one pair's order book plus the server
// sequence number of the last applied change. It is not synchronized;
// owners serialize access.
type MarketDepth struct {
	Asks       Ladder
	Bids       Ladder
	SequenceNo uint64
}

func NewMarketDepth() *MarketDepth {
	return &MarketDepth{
		Asks: NewLadder(SideAsk),
		Bids: NewLadder(SideBid),
	}
}

func (d *MarketDepth) ladder(side Side) *Ladder {
	if side == SideAsk {
		return &d.Asks
	}
	return &d.Bids
}

// ConsumedLadder returns the ladder a trade of the given direction eats
// into: buying base consumes asks, selling base consumes bids.
func (d *MarketDepth) ConsumedLadder(t TradeType) *Ladder {
	if t == Q2B {
		return &d.Asks
	}
	return &d.Bids
}

// UpsertOffer sets the quantity at a price level on one side. A zero
// quantity removes the level.
func (d *MarketDepth) UpsertOffer(side Side, price, qty decimal.Decimal) {
	d.ladder(side).Upsert(price, qty)
}

// ReplaceAll swaps in complete ladder contents and the sequence number
// they correspond to.
func (d *MarketDepth) ReplaceAll(asks, bids []Offer, seq uint64) {
	d.Asks.Replace(asks)
	d.Bids.Replace(bids)
	d.SequenceNo = seq
}

// ApplySnapshot resets the book to a REST snapshot.
func (d *MarketDepth) ApplySnapshot(snap *Snapshot) {
	d.ReplaceAll(levelsToOffers(snap.Asks), levelsToOffers(snap.Bids), snap.SequenceNo)
}

func levelsToOffers(levels []PriceLevel) []Offer {
	out := make([]Offer, 0, len(levels))
	for _, lv := range levels {
		if !lv.Qty.IsPositive() {
			continue
		}
		out = append(out, Offer{Price: lv.Price, AmountBase: lv.Qty})
	}
	return out
}

// OrderBookIndex returns where price would land in the ladder a trade of
// the given direction consumes.
func (d *MarketDepth) OrderBookIndex(t TradeType, price decimal.Decimal) int {
	return d.ConsumedLadder(t).InsertionIndex(price)
}

// OrderBookDepth sums the base amount of every level strictly better
// priced than price in the consumed ladder.
func (d *MarketDepth) OrderBookDepth(t TradeType, price decimal.Decimal) decimal.Decimal {
	l := d.ConsumedLadder(t)
	return l.TakeBase(l.InsertionIndex(price))
}

func (d *MarketDepth) Clone() *MarketDepth {
	return &MarketDepth{
		Asks:       d.Asks.Clone(),
		Bids:       d.Bids.Clone(),
		SequenceNo: d.SequenceNo,
	}
}

// AssertInvariants verifies ladder ordering on both sides and that the
// best ask is not below the best bid.
func (d *MarketDepth) AssertInvariants() error {
	if err := d.Asks.assertInvariants(); err != nil {
		return err
	}
	if err := d.Bids.assertInvariants(); err != nil {
		return err
	}
	ask, okA := d.Asks.Best()
	bid, okB := d.Bids.Best()
	if okA && okB && ask.Price.LessThan(bid.Price) {
		return fmt.Errorf("crossed book: best ask %s below best bid %s", ask.Price, bid.Price)
	}
	return nil
}
