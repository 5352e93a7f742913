package domain

import (
	"sync"

	"github.com/shopspring/decimal"
)

// TradePair binds a Base/Quote/Exchange triple to its market depth and
// trading constraints. A pair is created once per triple and updated in
// place afterwards, so holders can keep a stable reference.
type TradePair struct {
	Base     Coin
	Quote    Coin
	Exchange Exchange

	mu               sync.RWMutex
	amountRangeBase  Range
	amountRangeQuote Range
	priceRange       Range
	depth            *MarketDepth
}

// NewTradePair builds a pair with an empty book. Base and quote must
// differ.
func NewTradePair(base, quote Coin, ex Exchange, amountRangeBase, amountRangeQuote, priceRange Range) (*TradePair, error) {
	if base.Symbol == quote.Symbol {
		return nil, ErrInvalidPair
	}
	return &TradePair{
		Base:             base,
		Quote:            quote,
		Exchange:         ex,
		amountRangeBase:  amountRangeBase,
		amountRangeQuote: amountRangeQuote,
		priceRange:       priceRange,
		depth:            NewMarketDepth(),
	}, nil
}

func (p *TradePair) Key() PairKey {
	return PairKey{Base: p.Base.Symbol, Quote: p.Quote.Symbol, Exchange: p.Exchange.Name()}
}

func (p *TradePair) String() string {
	return p.Key().String()
}

// CoinIn returns the coin spent by a trade of the given direction.
func (p *TradePair) CoinIn(t TradeType) Coin {
	if t == Q2B {
		return p.Quote
	}
	return p.Base
}

// CoinOut returns the coin received by a trade of the given direction.
func (p *TradePair) CoinOut(t TradeType) Coin {
	if t == Q2B {
		return p.Base
	}
	return p.Quote
}

// Update copies rhs's constraints and book contents into the receiver
// without replacing it, preserving the identity holders rely on.
func (p *TradePair) Update(rhs *TradePair) {
	rhs.mu.RLock()
	ranges := [3]Range{rhs.amountRangeBase, rhs.amountRangeQuote, rhs.priceRange}
	depth := rhs.depth.Clone()
	rhs.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.amountRangeBase = ranges[0]
	p.amountRangeQuote = ranges[1]
	p.priceRange = ranges[2]
	p.depth.ReplaceAll(depth.Asks.Offers(), depth.Bids.Offers(), depth.SequenceNo)
}

// ReplaceDepth swaps in a fresh copy of the book, e.g. one obtained from
// the stream cache. The pair takes ownership of d.
func (p *TradePair) ReplaceDepth(d *MarketDepth) {
	if d == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.depth = d
}

// Depth returns a copy of the pair's book for UI or bot consumption.
func (p *TradePair) Depth() *MarketDepth {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.depth.Clone()
}

// PriceRange returns the configured price constraint.
func (p *TradePair) PriceRange() Range {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.priceRange
}

// AmountRangeIn returns the amount constraint on the currency a trade of
// the given direction spends.
func (p *TradePair) AmountRangeIn(t TradeType) Range {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if t == Q2B {
		return p.amountRangeQuote
	}
	return p.amountRangeBase
}

// AmountRangeOut returns the amount constraint on the currency a trade of
// the given direction receives.
func (p *TradePair) AmountRangeOut(t TradeType) Range {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if t == Q2B {
		return p.amountRangeBase
	}
	return p.amountRangeQuote
}

// SpotPrice returns the best price available to a trade of the given
// direction: buying base reads the best ask, selling base the best bid.
func (p *TradePair) SpotPrice(t TradeType) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	best, ok := p.depth.ConsumedLadder(t).Best()
	if !ok {
		return decimal.Zero, ErrNoLiquidity
	}
	return best.Price, nil
}

// Spread returns -(SpotPrice(Q2B) - SpotPrice(B2Q)); never positive, the
// magnitude is the cost of crossing the book.
func (p *TradePair) Spread() (decimal.Decimal, error) {
	ask, err := p.SpotPrice(Q2B)
	if err != nil {
		return decimal.Zero, err
	}
	bid, err := p.SpotPrice(B2Q)
	if err != nil {
		return decimal.Zero, err
	}
	return ask.Sub(bid).Neg(), nil
}

// BaseToQuote walks the bid ladder from the best price outward, selling up
// to amountBase. If the ladder runs out first the returned trade reflects
// only what could be matched; callers must compare the trade's amount
// against the request.
func (p *TradePair) BaseToQuote(amountBase decimal.Decimal) (*Trade, error) {
	if amountBase.IsNegative() {
		return nil, ErrInvalidTradeParameters
	}
	p.mu.RLock()
	remaining := amountBase
	filledBase := decimal.Zero
	gotQuote := decimal.Zero
	for _, o := range p.depth.Bids.offers {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, o.AmountBase)
		filledBase = filledBase.Add(take)
		gotQuote = gotQuote.Add(take.Mul(o.Price))
		remaining = remaining.Sub(take)
	}
	p.mu.RUnlock()

	price := decimal.Zero
	if filledBase.IsPositive() {
		price = gotQuote.Div(filledBase)
	}
	return NewTrade(p, B2Q, filledBase, price)
}

// QuoteToBase walks the ask ladder from the best price outward, spending
// up to amountQuote. Partial-fill semantics match BaseToQuote.
func (p *TradePair) QuoteToBase(amountQuote decimal.Decimal) (*Trade, error) {
	if amountQuote.IsNegative() {
		return nil, ErrInvalidTradeParameters
	}
	p.mu.RLock()
	remaining := amountQuote
	gotBase := decimal.Zero
	spentQuote := decimal.Zero
	for _, o := range p.depth.Asks.offers {
		if !remaining.IsPositive() {
			break
		}
		levelQuote := o.AmountBase.Mul(o.Price)
		if remaining.GreaterThanOrEqual(levelQuote) {
			gotBase = gotBase.Add(o.AmountBase)
			spentQuote = spentQuote.Add(levelQuote)
			remaining = remaining.Sub(levelQuote)
			continue
		}
		gotBase = gotBase.Add(remaining.Div(o.Price))
		spentQuote = spentQuote.Add(remaining)
		remaining = decimal.Zero
	}
	p.mu.RUnlock()

	price := decimal.Zero
	if gotBase.IsPositive() {
		price = spentQuote.Div(gotBase)
	}
	return NewTrade(p, Q2B, gotBase, price)
}

// DefaultTradeAmountBase converts the spent coin's configured default
// trade amount into base-currency units, dividing by the price when the
// default is quote-denominated.
func (p *TradePair) DefaultTradeAmountBase(t TradeType, priceQ2B decimal.Decimal) decimal.Decimal {
	coinIn := p.CoinIn(t)
	amount := coinIn.DefaultTradeAmount
	if coinIn.Equal(p.Quote) {
		if priceQ2B.IsZero() {
			return decimal.Zero
		}
		return amount.Div(priceQ2B)
	}
	return amount
}
