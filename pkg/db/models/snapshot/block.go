package snapshot

import "time"

// Block is the part of a ledger block the locator needs: where it sits and when it
// was committed. Time is always UTC.
type Block struct {
	Height uint64
	Time   time.Time
}
