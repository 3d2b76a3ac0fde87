package consolidate

import (
	"testing"

	"github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	addr1 = common.HexToAddress("0x1111111111111111111111111111111111111111")
	addr2 = common.HexToAddress("0x2222222222222222222222222222222222222222")
	addr3 = common.HexToAddress("0x3333333333333333333333333333333333333333")
	burn  = snapshot.BurnAddress
)

func item(addr common.Address, balance string) snapshot.Item {
	return snapshot.Item{Address: addr, Balance: decimal.RequireFromString(balance)}
}

func requireItems(t *testing.T, want, got []snapshot.Item) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Address, got[i].Address, "position %d", i)
		assert.True(t, want[i].Balance.Equal(got[i].Balance),
			"position %d: want %s, got %s", i, want[i].Balance, got[i].Balance)
	}
}

func TestConsolidateExample(t *testing.T) {
	primary := []snapshot.Item{item(addr1, "100"), item(addr2, "50")}
	legacy := []snapshot.Item{item(addr1, "10"), item(addr3, "5"), item(burn, "1000")}

	got := Consolidate(primary, legacy, Options{Burn: burn})

	requireItems(t, []snapshot.Item{
		item(addr1, "110"),
		item(addr2, "50"),
		item(addr3, "5"),
	}, got)
}

func TestConsolidateDropsBurnFromPrimaryToo(t *testing.T) {
	primary := []snapshot.Item{item(burn, "-1500000"), item(addr1, "1500000")}

	got := Consolidate(primary, nil, Options{Burn: burn})

	requireItems(t, []snapshot.Item{item(addr1, "1500000")}, got)
}

func TestConsolidateIsCommutativeWithoutCorrections(t *testing.T) {
	a := []snapshot.Item{item(addr1, "100"), item(addr2, "50.5")}
	b := []snapshot.Item{item(addr2, "0.5"), item(addr3, "7")}

	ab := Consolidate(a, b, Options{Burn: burn})
	ba := Consolidate(b, a, Options{Burn: burn})

	requireItems(t, ab, ba)
}

func TestConsolidateCorrectionTargetsLegacyList(t *testing.T) {
	fix := snapshot.Correction{
		Asset:   AssetLegacy,
		Address: addr2,
		Delta:   decimal.NewFromInt(-1122),
		Note:    "over-issued",
	}
	a := []snapshot.Item{item(addr1, "5000")}
	b := []snapshot.Item{item(addr2, "3000")}

	got := Consolidate(a, b, Options{Burn: burn, Corrections: []snapshot.Correction{fix}})
	requireItems(t, []snapshot.Item{item(addr1, "5000"), item(addr2, "1878")}, got)

	// Swapping inputs without swapping configuration moves addr2 to the primary list,
	// where the legacy correction no longer applies.
	swapped := Consolidate(b, a, Options{Burn: burn, Corrections: []snapshot.Correction{fix}})
	requireItems(t, []snapshot.Item{item(addr1, "5000"), item(addr2, "3000")}, swapped)
}

func TestApplyCorrections(t *testing.T) {
	items := []snapshot.Item{item(addr1, "10"), item(addr2, "20")}
	corrections := []snapshot.Correction{
		{Asset: AssetLegacy, Address: addr1, Delta: decimal.NewFromInt(-10)},
		{Asset: AssetLegacy, Address: addr3, Delta: decimal.NewFromInt(99)},
		{Asset: AssetPrimary, Address: addr2, Delta: decimal.NewFromInt(1)},
	}

	got, applied := ApplyCorrections(items, AssetLegacy, corrections)

	require.Len(t, applied, 1)
	assert.Equal(t, addr1, applied[0].Address)
	// A corrected balance of zero is kept.
	requireItems(t, []snapshot.Item{item(addr1, "0"), item(addr2, "20")}, got)
	// The input is untouched.
	assert.True(t, items[0].Balance.Equal(decimal.NewFromInt(10)))
}

func TestMergeSortsDescendingAndKeepsTieOrder(t *testing.T) {
	a := []snapshot.Item{item(addr1, "5"), item(addr2, "5")}
	b := []snapshot.Item{item(addr3, "9"), item(addr1, "0")}

	got := Merge(a, b)

	requireItems(t, []snapshot.Item{
		item(addr3, "9"),
		item(addr1, "5"),
		item(addr2, "5"),
	}, got)
}

func TestMergeUniqueAddresses(t *testing.T) {
	a := []snapshot.Item{item(addr1, "1"), item(addr2, "2"), item(addr3, "3")}
	b := []snapshot.Item{item(addr3, "3"), item(addr2, "2"), item(addr1, "1")}

	got := Merge(a, b)

	seen := make(map[common.Address]bool)
	for _, it := range got {
		require.False(t, seen[it.Address], "duplicate %s", it.Address.Hex())
		seen[it.Address] = true
	}
	requireItems(t, []snapshot.Item{item(addr3, "6"), item(addr2, "4"), item(addr1, "2")}, got)
}

func TestConsolidateReportsAppliedCorrections(t *testing.T) {
	corrections := []snapshot.Correction{
		{Asset: AssetLegacy, Address: addr1, Delta: decimal.NewFromInt(-1), Note: "matched"},
		{Asset: AssetLegacy, Address: addr3, Delta: decimal.NewFromInt(-1), Note: "absent"},
	}
	var applied []string
	opts := Options{
		Burn:        burn,
		Corrections: corrections,
		OnApplied:   func(c snapshot.Correction) { applied = append(applied, c.Note) },
	}

	Consolidate(nil, []snapshot.Item{item(addr1, "10")}, opts)

	assert.Equal(t, []string{"matched"}, applied)
}
