package snapshotfile

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilename(t *testing.T) {
	target := time.Date(2018, 3, 4, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "sift-snapshot-2018-03-04_100000.csv", Filename("sift-snapshot-", target))
}

func TestWrite(t *testing.T) {
	items := []snapshot.Item{
		{Address: common.HexToAddress("0xAbCdEf0000000000000000000000000000000001"), Balance: decimal.RequireFromString("1500.25")},
		{Address: common.HexToAddress("0x0000000000000000000000000000000000000002"), Balance: decimal.NewFromInt(7)},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, items))

	want := "Address,Balance\n" +
		"0xabcdef0000000000000000000000000000000001,1500.25\n" +
		"0x0000000000000000000000000000000000000002,7\n"
	assert.Equal(t, want, buf.String())
}

func TestReadSkipsHeaderAndBlankLines(t *testing.T) {
	in := "Address,Balance\n" +
		"0xabcdef0000000000000000000000000000000001, 1500.25\n" +
		"\n" +
		"0x0000000000000000000000000000000000000002,7\n"

	items, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, common.HexToAddress("0xabcdef0000000000000000000000000000000001"), items[0].Address)
	assert.True(t, items[0].Balance.Equal(decimal.RequireFromString("1500.25")))
	assert.True(t, items[1].Balance.Equal(decimal.NewFromInt(7)))
}

func TestReadRejectsMalformedRows(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "bad address", in: "Address,Balance\nnope,1\n"},
		{name: "bad balance", in: "Address,Balance\n0x0000000000000000000000000000000000000002,lots\n"},
		{name: "extra field", in: "0x0000000000000000000000000000000000000002,1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.in))
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestWriteFileThenReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "snap.csv")
	items := []snapshot.Item{
		{Address: common.HexToAddress("0x0000000000000000000000000000000000000003"), Balance: decimal.RequireFromString("0.000001")},
	}

	require.NoError(t, WriteFile(path, items))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, items[0].Address, got[0].Address)
	assert.True(t, items[0].Balance.Equal(got[0].Balance))
}
