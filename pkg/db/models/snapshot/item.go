package snapshot

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// BurnAddress is the null address tokens are minted from and burned to.
var BurnAddress = common.Address{}

// Item is a single holder row of a snapshot.
type Item struct {
	Address common.Address
	Balance decimal.Decimal
}

// AddressString renders the address the way snapshot files store it: lowercase hex.
func (i Item) AddressString() string {
	return strings.ToLower(i.Address.Hex())
}

// Total sums the balances of items.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Balance)
	}
	return total
}
