package replay

import (
	"math/big"

	"github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Ledger accumulates signed balances per address while events are replayed.
// It is owned by a single Replay call.
type Ledger struct {
	balances map[common.Address]decimal.Decimal
	exp      int32
}

// NewLedger returns an empty ledger that scales raw amounts down by 10^decimals.
func NewLedger(decimals int32) *Ledger {
	return &Ledger{
		balances: make(map[common.Address]decimal.Decimal),
		exp:      decimals,
	}
}

// Amount converts a raw on-chain integer into the asset's decimal unit.
func (l *Ledger) Amount(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	if l.exp > 0 {
		return decimal.NewFromBigInt(raw, -l.exp)
	}
	return decimal.NewFromBigInt(raw, 0)
}

// Apply debits the sender and credits the recipient of ev.
func (l *Ledger) Apply(ev snapshot.TransferEvent) {
	amount := l.Amount(ev.Amount)
	l.balances[ev.From] = l.balances[ev.From].Sub(amount)
	l.balances[ev.To] = l.balances[ev.To].Add(amount)
}

// Balance returns the current balance of addr, zero when it never moved.
func (l *Ledger) Balance(addr common.Address) decimal.Decimal {
	return l.balances[addr]
}

// Sum is the total across all entries. Replaying a complete event history keeps it at zero.
func (l *Ledger) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, b := range l.balances {
		sum = sum.Add(b)
	}
	return sum
}

// Items returns every non-zero entry, in no particular order.
func (l *Ledger) Items() []snapshot.Item {
	items := make([]snapshot.Item, 0, len(l.balances))
	for addr, b := range l.balances {
		if b.IsZero() {
			continue
		}
		items = append(items, snapshot.Item{Address: addr, Balance: b})
	}
	return items
}
