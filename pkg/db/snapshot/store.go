package snapshot

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/canopy-network/holderscan/pkg/db/clickhouse"
	snapshotmodels "github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	"go.uber.org/zap"
)

// Store writes final snapshots to ClickHouse.
type Store struct {
	clickhouse.Client
	Name string
}

// New wraps client and targets database name.
func New(client clickhouse.Client, name string) *Store {
	return &Store{Client: client, Name: clickhouse.SanitizeName(name)}
}

// Init creates the database and the holder_snapshots table if they do not exist.
func (db *Store) Init(ctx context.Context) error {
	if err := db.CreateDbIfNotExists(ctx, db.Name); err != nil {
		return fmt.Errorf("create database %s: %w", db.Name, err)
	}

	exists, err := db.TableExists(ctx, db.Name, snapshotmodels.HolderSnapshotsTableName)
	if err != nil {
		return err
	}
	if exists {
		db.Logger.Info("Reusing holder snapshots table",
			zap.String("database", db.Name),
			zap.String("table", snapshotmodels.HolderSnapshotsTableName))
		return nil
	}
	return db.initHolderSnapshots(ctx)
}

// initHolderSnapshots creates holder_snapshots with ReplacingMergeTree(computed_at):
// re-running a snapshot for the same target and height replaces the earlier rows.
func (db *Store) initHolderSnapshots(ctx context.Context) error {
	query := createHolderSnapshotsSQL(db.Name, db.OnCluster(),
		db.Engine(clickhouse.ReplacingMergeTree, "computed_at"))

	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", snapshotmodels.HolderSnapshotsTableName, err)
	}

	db.Logger.Debug("Holder snapshots table initialized",
		zap.String("table", snapshotmodels.HolderSnapshotsTableName),
		zap.String("database", db.Name))
	return nil
}

func createHolderSnapshotsSQL(database, onCluster, engine string) string {
	return fmt.Sprintf(
		`
		CREATE TABLE IF NOT EXISTS "%s"."%s" %s (
			%s,
			INDEX address_bloom address TYPE bloom_filter GRANULARITY 4
		) ENGINE = %s
		PARTITION BY toYYYYMM(target_time)
		ORDER BY (target_time, snapshot_height, address)
	`,
		database,
		snapshotmodels.HolderSnapshotsTableName,
		onCluster,
		snapshotmodels.ColumnsToSchemaSQL(snapshotmodels.HolderSnapshotColumns),
		engine,
	)
}

func insertHolderSnapshotsSQL(database string) string {
	return fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`,
		database,
		snapshotmodels.HolderSnapshotsTableName,
		snapshotmodels.ColumnNames(snapshotmodels.HolderSnapshotColumns))
}

// InsertResult writes every holder of res in a single batch.
func (db *Store) InsertResult(ctx context.Context, res *snapshotmodels.Result) error {
	rows := res.Rows()
	if len(rows) == 0 {
		return nil
	}

	batch, err := db.PrepareBatch(ctx, insertHolderSnapshotsSQL(db.Name))
	if err != nil {
		return fmt.Errorf("prepare batch for %s: %w", snapshotmodels.HolderSnapshotsTableName, err)
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, row := range rows {
		err = batch.Append(
			row.RunID,
			row.TargetTime,
			row.SnapshotHeight,
			row.Address,
			row.Balance,
			row.Rank,
			row.ComputedAt,
		)
		if err != nil {
			return fmt.Errorf("append holder to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch for %s: %w", snapshotmodels.HolderSnapshotsTableName, err)
	}

	db.Logger.Info("Snapshot stored",
		zap.String("run_id", res.RunID.String()),
		zap.Uint64("height", res.Height),
		zap.Int("rows", len(rows)))
	return nil
}
