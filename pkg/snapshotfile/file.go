// Package snapshotfile reads and writes holder snapshots as Address,Balance CSV.
package snapshotfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const timestampLayout = "2006-01-02_150405"

var header = []string{"Address", "Balance"}

// ErrMalformed is returned for rows that are not an address and a decimal balance.
var ErrMalformed = errors.New("malformed snapshot row")

// Filename returns the default file name for a snapshot taken at target.
func Filename(prefix string, target time.Time) string {
	return prefix + target.UTC().Format(timestampLayout) + ".csv"
}

// Write encodes items with a header row.
func Write(w io.Writer, items []snapshot.Item) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, it := range items {
		if err := cw.Write([]string{it.AddressString(), it.Balance.String()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes items to path, creating parent directories as needed.
func WriteFile(path string, items []snapshot.Item) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := Write(f, items); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Read decodes a snapshot. The header row and blank lines are skipped.
func Read(r io.Reader) ([]snapshot.Item, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var items []snapshot.Item
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), header[0]) {
			continue
		}
		if len(rec) != 2 {
			return nil, fmt.Errorf("%w at line %d: want 2 fields, got %d", ErrMalformed, line, len(rec))
		}
		addr := strings.TrimSpace(rec[0])
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("%w at line %d: address %q", ErrMalformed, line, addr)
		}
		balance, err := decimal.NewFromString(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("%w at line %d: balance %q", ErrMalformed, line, rec[1])
		}
		items = append(items, snapshot.Item{Address: common.HexToAddress(addr), Balance: balance})
	}
}

// ReadFile reads the snapshot at path.
func ReadFile(path string) ([]snapshot.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	items, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return items, nil
}
