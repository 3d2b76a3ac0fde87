package snapshot

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HolderSnapshotsTableName is the table final snapshots are written to.
const HolderSnapshotsTableName = "holder_snapshots"

// ColumnDef defines a single column for a table.
type ColumnDef struct {
	// Name is the column name
	Name string

	// Type is the ClickHouse data type (e.g., "UInt64", "String", "DateTime64(3, 'UTC')")
	Type string

	// Codec is the optional compression codec (e.g., "ZSTD(1)", "Delta, ZSTD(3)")
	Codec string
}

// SQL returns the full column definition for CREATE TABLE statements.
// Example: "address String CODEC(ZSTD(1))"
func (c ColumnDef) SQL() string {
	if c.Codec != "" {
		return fmt.Sprintf("%s %s CODEC(%s)", c.Name, c.Type, c.Codec)
	}
	return fmt.Sprintf("%s %s", c.Name, c.Type)
}

// ColumnsToSchemaSQL joins column definitions for a CREATE TABLE body.
func ColumnsToSchemaSQL(columns []ColumnDef) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = c.SQL()
	}
	return strings.Join(defs, ",\n\t\t\t")
}

// ColumnNames returns the column names in order, comma separated.
func ColumnNames(columns []ColumnDef) string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

// BalanceScale is the number of fractional digits the balance column keeps.
const BalanceScale = 18

// HolderSnapshotColumns defines the holder_snapshots schema.
var HolderSnapshotColumns = []ColumnDef{
	{Name: "run_id", Type: "UUID"},
	{Name: "target_time", Type: "DateTime64(3, 'UTC')", Codec: "DoubleDelta, ZSTD(1)"},
	{Name: "snapshot_height", Type: "UInt64", Codec: "DoubleDelta, ZSTD(1)"},
	{Name: "address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "balance", Type: "Decimal(76, 18)", Codec: "ZSTD(3)"},
	{Name: "rank", Type: "UInt32", Codec: "Delta, ZSTD(1)"},
	{Name: "computed_at", Type: "DateTime64(3, 'UTC')", Codec: "DoubleDelta, ZSTD(1)"},
}

// HolderSnapshotRow is one holder of one snapshot run, as stored.
type HolderSnapshotRow struct {
	RunID          uuid.UUID       `ch:"run_id" json:"run_id"`
	TargetTime     time.Time       `ch:"target_time" json:"target_time"`
	SnapshotHeight uint64          `ch:"snapshot_height" json:"snapshot_height"`
	Address        string          `ch:"address" json:"address"`
	Balance        decimal.Decimal `ch:"balance" json:"balance"`
	Rank           uint32          `ch:"rank" json:"rank"`
	ComputedAt     time.Time       `ch:"computed_at" json:"computed_at"`
}

// Rows flattens a result into table rows. Rank is the 1-based position in Items.
func (r *Result) Rows() []*HolderSnapshotRow {
	rows := make([]*HolderSnapshotRow, 0, len(r.Items))
	for i, it := range r.Items {
		rows = append(rows, &HolderSnapshotRow{
			RunID:          r.RunID,
			TargetTime:     r.Target.UTC(),
			SnapshotHeight: r.Height,
			Address:        it.AddressString(),
			Balance:        it.Balance,
			Rank:           uint32(i + 1),
			ComputedAt:     r.FinishedAt.UTC(),
		})
	}
	return rows
}
