package domain

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Balance tracks one coin's funds on an exchange. Holds are keyed by a
// reservation ID (normally the order ID) so validation can look through a
// specific hold when re-pricing an open order.
//
// The user-data stream mutates balances while callers validate trades, so
// every accessor takes the internal lock.
type Balance struct {
	mu       sync.Mutex
	symbol   string
	amount   decimal.Decimal
	reserved map[string]decimal.Decimal
}

func NewBalance(symbol string) *Balance {
	return &Balance{
		symbol:   symbol,
		reserved: make(map[string]decimal.Decimal),
	}
}

func (b *Balance) Symbol() string {
	return b.symbol
}

// Amount returns the total balance including reserved funds.
func (b *Balance) Amount() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.amount
}

// Available returns the spendable balance (total minus all holds).
func (b *Balance) Available() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.availableLocked()
}

func (b *Balance) availableLocked() decimal.Decimal {
	avail := b.amount
	for _, r := range b.reserved {
		avail = avail.Sub(r)
	}
	return avail
}

// AvailableFor returns the balance spendable by a trade that may reuse the
// funds held under reservedID, plus any hypothetical extra balance.
func (b *Balance) AvailableFor(reservedID string, additional decimal.Decimal) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	avail := b.availableLocked().Add(additional)
	if reservedID != "" {
		if held, ok := b.reserved[reservedID]; ok {
			avail = avail.Add(held)
		}
	}
	return avail
}

// Set overwrites total and aggregate reserved amounts, e.g. from a
// user-data stream event. Individual holds are preserved only when the
// aggregate still covers them.
func (b *Balance) Set(amount, reserved decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.amount = amount
	sum := decimal.Zero
	for _, r := range b.reserved {
		sum = sum.Add(r)
	}
	if !sum.Equal(reserved) {
		b.reserved = map[string]decimal.Decimal{"": reserved}
	}
}

// Deposit adds funds to the balance.
func (b *Balance) Deposit(amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.amount = b.amount.Add(amount)
}

// Withdraw removes available funds from the balance.
func (b *Balance) Withdraw(amount decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if amount.GreaterThan(b.availableLocked()) {
		return fmt.Errorf("balance %s: withdraw %s exceeds available %s", b.symbol, amount, b.availableLocked())
	}
	b.amount = b.amount.Sub(amount)
	return nil
}

// Reserve places a hold on available funds under the given ID.
func (b *Balance) Reserve(id string, amount decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if amount.GreaterThan(b.availableLocked()) {
		return fmt.Errorf("balance %s: reserve %s exceeds available %s", b.symbol, amount, b.availableLocked())
	}
	b.reserved[id] = b.reserved[id].Add(amount)
	return nil
}

// Release drops the hold with the given ID. Unknown IDs are a no-op.
func (b *Balance) Release(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.reserved, id)
}

// VerifyInvariant checks that the balance is internally consistent:
// non-negative total, non-negative holds, holds covered by the total.
func (b *Balance) VerifyInvariant() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.amount.IsNegative() {
		return fmt.Errorf("balance %s: negative amount %s", b.symbol, b.amount)
	}
	sum := decimal.Zero
	for id, r := range b.reserved {
		if r.IsNegative() {
			return fmt.Errorf("balance %s: negative hold %s under %q", b.symbol, r, id)
		}
		sum = sum.Add(r)
	}
	if sum.GreaterThan(b.amount) {
		return fmt.Errorf("balance %s: holds %s exceed amount %s", b.symbol, sum, b.amount)
	}
	return nil
}

// BalanceBook manages the balances of one exchange account.
type BalanceBook struct {
	mu       sync.Mutex
	balances map[string]*Balance
}

func NewBalanceBook() *BalanceBook {
	return &BalanceBook{
		balances: make(map[string]*Balance),
	}
}

// Get returns the balance for a symbol, creating it if absent.
func (bb *BalanceBook) Get(symbol string) *Balance {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	b, ok := bb.balances[symbol]
	if !ok {
		b = NewBalance(symbol)
		bb.balances[symbol] = b
	}
	return b
}

// VerifyAll checks invariants on every balance.
func (bb *BalanceBook) VerifyAll() error {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	for _, b := range bb.balances {
		if err := b.VerifyInvariant(); err != nil {
			return err
		}
	}
	return nil
}
