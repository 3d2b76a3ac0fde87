package consolidate

import (
	"sort"

	"github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"github.com/ethereum/go-ethereum/common"
)

// Asset roles a correction can target.
const (
	AssetPrimary = "primary"
	AssetLegacy  = "legacy"
)

// Options holds the per-deployment adjustments applied while consolidating.
type Options struct {
	// Burn is excluded from both lists.
	Burn common.Address
	// Corrections are applied to the list of the asset role they name, before merging.
	Corrections []snapshot.Correction
	// OnApplied, if set, is called for every correction that matched a holder.
	OnApplied func(snapshot.Correction)
}

// Consolidate merges the primary and legacy holder lists into one list sorted by
// balance, descending. Corrections are applied first, then the burn address is
// dropped from both lists, then legacy balances are added onto primary ones.
//
// Inputs are not modified.
func Consolidate(primary, legacy []snapshot.Item, opts Options) []snapshot.Item {
	primary, appliedPrimary := ApplyCorrections(primary, AssetPrimary, opts.Corrections)
	legacy, appliedLegacy := ApplyCorrections(legacy, AssetLegacy, opts.Corrections)
	if opts.OnApplied != nil {
		for _, c := range append(appliedPrimary, appliedLegacy...) {
			opts.OnApplied(c)
		}
	}

	return Merge(Exclude(primary, opts.Burn), Exclude(legacy, opts.Burn))
}

// ApplyCorrections returns a copy of items with every correction for asset added to
// the matching holder. Corrections for addresses absent from items are skipped.
// The corrections that matched are returned for auditing.
func ApplyCorrections(items []snapshot.Item, asset string, corrections []snapshot.Correction) ([]snapshot.Item, []snapshot.Correction) {
	out := make([]snapshot.Item, len(items))
	copy(out, items)

	var applied []snapshot.Correction
	for _, c := range corrections {
		if c.Asset != asset {
			continue
		}
		for i := range out {
			if out[i].Address == c.Address {
				out[i].Balance = out[i].Balance.Add(c.Delta)
				applied = append(applied, c)
				break
			}
		}
	}
	return out, applied
}

// Exclude returns items without addr.
func Exclude(items []snapshot.Item, addr common.Address) []snapshot.Item {
	out := make([]snapshot.Item, 0, len(items))
	for _, it := range items {
		if it.Address == addr {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Merge seeds the result with a, then adds every b balance onto the matching entry or
// appends it. The result is sorted by balance, descending; equal balances keep their
// merge order.
func Merge(a, b []snapshot.Item) []snapshot.Item {
	out := make([]snapshot.Item, 0, len(a)+len(b))
	index := make(map[common.Address]int, len(a)+len(b))

	add := func(it snapshot.Item) {
		if i, ok := index[it.Address]; ok {
			out[i].Balance = out[i].Balance.Add(it.Balance)
			return
		}
		index[it.Address] = len(out)
		out = append(out, it)
	}
	for _, it := range a {
		add(it)
	}
	for _, it := range b {
		add(it)
	}

	SortDescending(out)
	return out
}

// SortDescending orders items by balance, largest first, keeping equal balances in place.
func SortDescending(items []snapshot.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Balance.GreaterThan(items[j].Balance)
	})
}
