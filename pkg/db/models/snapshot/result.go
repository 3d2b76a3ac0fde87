package snapshot

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Result is the outcome of one snapshot run. Items are sorted by balance, descending.
type Result struct {
	RunID      uuid.UUID
	Target     time.Time
	Height     uint64
	Items      []Item
	Total      decimal.Decimal
	StartedAt  time.Time
	FinishedAt time.Time
}

// Holders returns the number of addresses in the snapshot.
func (r *Result) Holders() int {
	return len(r.Items)
}
