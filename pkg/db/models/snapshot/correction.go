package snapshot

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Correction is a one-off bookkeeping adjustment applied to a single holder after
// replay. Asset names the asset role ("primary" or "legacy") whose list it targets.
type Correction struct {
	Asset   string
	Address common.Address
	Delta   decimal.Decimal
	Note    string
}
