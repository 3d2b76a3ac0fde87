package snapshot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/canopy-network/holderscan/pkg/db/clickhouse"
	snapshotmodels "github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeConn records statements; only the methods the store uses are implemented.
type fakeConn struct {
	driver.Conn
	execs   []string
	queries []string
	tables  uint64
	batch   *fakeBatch
}

func (c *fakeConn) Exec(_ context.Context, query string, _ ...any) error {
	c.execs = append(c.execs, query)
	return nil
}

func (c *fakeConn) QueryRow(_ context.Context, query string, _ ...any) driver.Row {
	c.queries = append(c.queries, query)
	return countRow{n: c.tables}
}

func (c *fakeConn) PrepareBatch(_ context.Context, query string, _ ...driver.PrepareBatchOption) (driver.Batch, error) {
	c.batch = &fakeBatch{query: query}
	return c.batch, nil
}

type countRow struct {
	driver.Row
	n uint64
}

func (r countRow) Scan(dest ...any) error {
	*dest[0].(*uint64) = r.n
	return nil
}

type fakeBatch struct {
	driver.Batch
	query string
	rows  [][]any
	sent  bool
}

func (b *fakeBatch) Append(v ...any) error {
	b.rows = append(b.rows, v)
	return nil
}

func (b *fakeBatch) Send() error {
	b.sent = true
	return nil
}

func (b *fakeBatch) Abort() error { return nil }

func newTestStore(t *testing.T, conn *fakeConn) *Store {
	return New(clickhouse.Client{Logger: zaptest.NewLogger(t), Db: conn}, "HolderScan-Test")
}

func TestInitCreatesMissingTable(t *testing.T) {
	conn := &fakeConn{}
	store := newTestStore(t, conn)
	require.NoError(t, store.Init(context.Background()))

	assert.Equal(t, "holderscan_test", store.Name)
	require.Len(t, conn.queries, 1)
	assert.Contains(t, conn.queries[0], "system.tables")
	require.Len(t, conn.execs, 2)
	assert.Contains(t, conn.execs[0], "CREATE DATABASE IF NOT EXISTS holderscan_test")
	assert.Contains(t, conn.execs[1], `CREATE TABLE IF NOT EXISTS "holderscan_test"."holder_snapshots"`)
}

func TestInitReusesExistingTable(t *testing.T) {
	conn := &fakeConn{tables: 1}
	store := newTestStore(t, conn)
	require.NoError(t, store.Init(context.Background()))

	require.Len(t, conn.execs, 1)
	assert.Contains(t, conn.execs[0], "CREATE DATABASE")
}

func TestInsertResult(t *testing.T) {
	conn := &fakeConn{}
	store := newTestStore(t, conn)
	res := &snapshotmodels.Result{
		RunID:  uuid.New(),
		Target: time.Date(2018, 3, 4, 10, 0, 0, 0, time.UTC),
		Height: 5_200_000,
		Items: []snapshotmodels.Item{
			{Address: common.HexToAddress("0x01"), Balance: decimal.NewFromInt(7)},
			{Address: common.HexToAddress("0x02"), Balance: decimal.NewFromInt(3)},
		},
	}

	require.NoError(t, store.InsertResult(context.Background(), res))
	require.NotNil(t, conn.batch)
	assert.True(t, conn.batch.sent)
	assert.Equal(t, insertHolderSnapshotsSQL("holderscan_test"), conn.batch.query)
	require.Len(t, conn.batch.rows, 2)
	assert.Len(t, conn.batch.rows[0], 7)
	assert.Equal(t, uint32(2), conn.batch.rows[1][5])
}

func TestInsertResultSkipsEmptySnapshot(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, newTestStore(t, conn).InsertResult(context.Background(), &snapshotmodels.Result{}))
	assert.Nil(t, conn.batch)
}

func TestCreateHolderSnapshotsSQL(t *testing.T) {
	query := createHolderSnapshotsSQL("holderscan", "", "ReplacingMergeTree(computed_at)")

	assert.Contains(t, query, `CREATE TABLE IF NOT EXISTS "holderscan"."holder_snapshots"`)
	assert.Contains(t, query, "balance Decimal(76, 18) CODEC(ZSTD(3))")
	assert.Contains(t, query, fmt.Sprintf("Decimal(76, %d)", snapshotmodels.BalanceScale))
	assert.Contains(t, query, "run_id UUID,")
	assert.Contains(t, query, "ENGINE = ReplacingMergeTree(computed_at)")
	assert.Contains(t, query, "ORDER BY (target_time, snapshot_height, address)")
}

func TestInsertHolderSnapshotsSQL(t *testing.T) {
	query := insertHolderSnapshotsSQL("holderscan")
	assert.Equal(t,
		`INSERT INTO "holderscan"."holder_snapshots" (run_id, target_time, snapshot_height, address, balance, rank, computed_at) VALUES`,
		query)
	// InsertResult appends one value per column.
	assert.Len(t, strings.Split(snapshotmodels.ColumnNames(snapshotmodels.HolderSnapshotColumns), ", "), 7)
}

func TestResultRows(t *testing.T) {
	target := time.Date(2018, 3, 4, 10, 0, 0, 0, time.UTC)
	res := &snapshotmodels.Result{
		RunID:  uuid.New(),
		Target: target,
		Height: 5_200_000,
		Items: []snapshotmodels.Item{
			{Address: common.HexToAddress("0xAB00000000000000000000000000000000000001"), Balance: decimal.NewFromInt(110)},
			{Address: common.HexToAddress("0x0000000000000000000000000000000000000002"), Balance: decimal.NewFromInt(50)},
		},
		FinishedAt: target.Add(time.Hour),
	}

	rows := res.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, res.RunID, rows[0].RunID)
	assert.Equal(t, "0xab00000000000000000000000000000000000001", rows[0].Address)
	assert.Equal(t, uint32(1), rows[0].Rank)
	assert.Equal(t, uint32(2), rows[1].Rank)
	assert.Equal(t, uint64(5_200_000), rows[1].SnapshotHeight)
	assert.Equal(t, target.Add(time.Hour), rows[1].ComputedAt)
}
