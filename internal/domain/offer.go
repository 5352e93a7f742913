package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Offer is one price level of a ladder. AmountBase is always denominated
// in base-currency units, whichever side the level sits on.
type Offer struct {
	Price      decimal.Decimal
	AmountBase decimal.Decimal
}

// Ladder is one side of an order book, kept sorted best-first: ascending
// prices for asks, descending for bids. Prices are unique.
type Ladder struct {
	side   Side
	offers []Offer
}

func NewLadder(side Side) Ladder {
	return Ladder{side: side}
}

func (l *Ladder) Side() Side {
	return l.side
}

func (l *Ladder) Len() int {
	return len(l.offers)
}

func (l *Ladder) At(i int) Offer {
	return l.offers[i]
}

// Best returns the top of the ladder, if any.
func (l *Ladder) Best() (Offer, bool) {
	if len(l.offers) == 0 {
		return Offer{}, false
	}
	return l.offers[0], true
}

// search locates price in the ladder's ordering. It returns the index
// where an offer at price sits or would be inserted, and whether an offer
// at exactly that price exists.
func (l *Ladder) search(price decimal.Decimal) (int, bool) {
	idx := sort.Search(len(l.offers), func(i int) bool {
		if l.side == SideAsk {
			return l.offers[i].Price.GreaterThanOrEqual(price)
		}
		return l.offers[i].Price.LessThanOrEqual(price)
	})
	found := idx < len(l.offers) && l.offers[idx].Price.Equal(price)
	return idx, found
}

// InsertionIndex returns where an offer at price sits or would be
// inserted, preserving the ladder's best-first ordering.
func (l *Ladder) InsertionIndex(price decimal.Decimal) int {
	idx, _ := l.search(price)
	return idx
}

// Index returns the position of the level at exactly price, if present.
func (l *Ladder) Index(price decimal.Decimal) (int, bool) {
	return l.search(price)
}

// Upsert sets the quantity at a price level. A zero or negative quantity
// removes the level; upserting an absent level with zero quantity is a
// no-op.
func (l *Ladder) Upsert(price, qty decimal.Decimal) {
	idx, found := l.search(price)
	if !qty.IsPositive() {
		if found {
			l.offers = append(l.offers[:idx], l.offers[idx+1:]...)
		}
		return
	}
	if found {
		l.offers[idx].AmountBase = qty
		return
	}
	l.offers = append(l.offers, Offer{})
	copy(l.offers[idx+1:], l.offers[idx:])
	l.offers[idx] = Offer{Price: price, AmountBase: qty}
}

// DepthTo sums the base amount of every level at or better than the given
// limit price.
func (l *Ladder) DepthTo(limit decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, o := range l.offers {
		if l.side == SideAsk && o.Price.GreaterThan(limit) {
			break
		}
		if l.side == SideBid && o.Price.LessThan(limit) {
			break
		}
		total = total.Add(o.AmountBase)
	}
	return total
}

// TakeBase sums the base amount of the first n levels.
func (l *Ladder) TakeBase(n int) decimal.Decimal {
	if n > len(l.offers) {
		n = len(l.offers)
	}
	total := decimal.Zero
	for _, o := range l.offers[:n] {
		total = total.Add(o.AmountBase)
	}
	return total
}

// TotalBase sums the base amount across the whole ladder.
func (l *Ladder) TotalBase() decimal.Decimal {
	total := decimal.Zero
	for _, o := range l.offers {
		total = total.Add(o.AmountBase)
	}
	return total
}

// Replace swaps the ladder contents for the given levels, re-sorting them
// into the ladder's ordering. The ladder takes ownership of offers.
func (l *Ladder) Replace(offers []Offer) {
	sort.Slice(offers, func(i, j int) bool {
		if l.side == SideAsk {
			return offers[i].Price.LessThan(offers[j].Price)
		}
		return offers[i].Price.GreaterThan(offers[j].Price)
	})
	l.offers = offers
}

// Offers returns a copy of the ladder's levels, best first.
func (l *Ladder) Offers() []Offer {
	out := make([]Offer, len(l.offers))
	copy(out, l.offers)
	return out
}

func (l *Ladder) Clone() Ladder {
	return Ladder{side: l.side, offers: l.Offers()}
}

// assertInvariants verifies strict best-first ordering and non-negative
// amounts.
func (l *Ladder) assertInvariants() error {
	for i, o := range l.offers {
		if o.AmountBase.IsNegative() || o.Price.IsNegative() {
			return fmt.Errorf("%s ladder level %d is negative: %s @ %s", l.side, i, o.AmountBase, o.Price)
		}
		if i == 0 {
			continue
		}
		prev := l.offers[i-1].Price
		if l.side == SideAsk && !prev.LessThan(o.Price) {
			return fmt.Errorf("ask ladder not strictly ascending at %d: %s then %s", i, prev, o.Price)
		}
		if l.side == SideBid && !prev.GreaterThan(o.Price) {
			return fmt.Errorf("bid ladder not strictly descending at %d: %s then %s", i, prev, o.Price)
		}
	}
	return nil
}
