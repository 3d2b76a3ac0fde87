package holderscan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/canopy-network/holderscan/pkg/config"
	"github.com/canopy-network/holderscan/pkg/consolidate"
	"github.com/canopy-network/holderscan/pkg/db/clickhouse"
	snapshotmodels "github.com/canopy-network/holderscan/pkg/db/models/snapshot"
	dbsnapshot "github.com/canopy-network/holderscan/pkg/db/snapshot"
	"github.com/canopy-network/holderscan/pkg/locator"
	"github.com/canopy-network/holderscan/pkg/logging"
	"github.com/canopy-network/holderscan/pkg/redis"
	"github.com/canopy-network/holderscan/pkg/replay"
	"github.com/canopy-network/holderscan/pkg/retry"
	"github.com/canopy-network/holderscan/pkg/rpc"
	"github.com/canopy-network/holderscan/pkg/snapshot"
	"github.com/canopy-network/holderscan/pkg/snapshotfile"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scanner computes a snapshot for a target time.
type Scanner interface {
	Scan(ctx context.Context, target time.Time) (*snapshotmodels.Result, error)
}

// App wires configuration, the remote ledger client and the optional sinks around a Scanner.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Scanner Scanner

	// Store receives final snapshots when store.clickhouse is enabled.
	Store *dbsnapshot.Store
	// Redis publishes run summaries when notify.redis is enabled.
	Redis *redis.Client

	// Cron triggers scheduled scans, according to Config.Schedule.Cron.
	Cron *cron.Cron

	// Stdout receives the CSV when the snapshot file cannot be written.
	Stdout io.Writer
	now    func() time.Time
}

// Initialize loads the configuration at configPath (the built-in deployment when empty)
// and builds the scanner. It does not touch the network.
func Initialize(configPath string) (*App, error) {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return nil, err
	}

	client := rpc.NewHTTPWithOpts(cfg.RPCOpts())
	scanner, err := NewScanner(cfg, client, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		zap.String("config", configPath),
		zap.Strings("rpc_endpoints", cfg.RPC.Endpoints),
		zap.String("primary", cfg.Assets.Primary.Name),
		zap.String("legacy", cfg.Assets.Legacy.Name))

	return &App{
		Config:  cfg,
		Logger:  logger,
		Scanner: scanner,
		Stdout:  os.Stdout,
		now:     time.Now,
	}, nil
}

// NewScanner builds the locator, replay engine and scanner described by cfg.
func NewScanner(cfg *config.Config, client rpc.Client, logger *zap.Logger) (*snapshot.Scanner, error) {
	primary, err := cfg.Assets.Primary.Asset()
	if err != nil {
		return nil, fmt.Errorf("assets.primary: %w", err)
	}
	legacy, err := cfg.Assets.Legacy.Asset()
	if err != nil {
		return nil, fmt.Errorf("assets.legacy: %w", err)
	}
	opts, err := cfg.ConsolidateOptions()
	if err != nil {
		return nil, err
	}

	scfg := snapshot.Config{
		Primary:     primary,
		Legacy:      legacy,
		Consolidate: opts,
	}
	if expected, ok, err := cfg.Expected(); err != nil {
		return nil, err
	} else if ok {
		scfg.ExpectedTotal = &expected
	}

	loc := locator.New(client, cfg.LocatorConfig(), logger)
	engine := replay.NewEngine(client, cfg.ReplayConfig(), logger)
	return snapshot.NewScanner(loc, engine, scfg, logger), nil
}

// OpenSinks connects the ClickHouse store and the Redis notifier when they are enabled.
func (a *App) OpenSinks(ctx context.Context) error {
	if a.Config.Store.ClickHouse.Enabled {
		chClient, err := clickhouse.New(ctx, a.Logger, a.Config.Store.ClickHouse.Addr, clickhouse.DefaultPoolConfig())
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		store := dbsnapshot.New(chClient, a.Config.Store.ClickHouse.Database)
		if err := store.Init(ctx); err != nil {
			_ = chClient.Close()
			return fmt.Errorf("init snapshot store: %w", err)
		}
		a.Store = store
	}

	if a.Config.Notify.Redis.Enabled {
		client, err := redis.NewClient(ctx, a.Logger.Named("redis"))
		if err != nil {
			return err
		}
		a.Redis = client
	}
	return nil
}

// Scan runs one snapshot at target, writes it to out (or the default file name in the
// output directory when out is empty) and hands it to the enabled sinks.
// It returns the path written, which is empty when the CSV went to Stdout instead.
func (a *App) Scan(ctx context.Context, target time.Time, out string) (*snapshotmodels.Result, string, error) {
	res, err := a.Scanner.Scan(ctx, target)
	if err != nil {
		return nil, "", err
	}

	if out == "" {
		out = filepath.Join(a.Config.Output.Dir, snapshotfile.Filename(a.Config.Output.Prefix, res.Target))
	}
	if err := snapshotfile.WriteFile(out, res.Items); err != nil {
		a.Logger.Error("Unable to write snapshot file, dumping to stdout",
			zap.String("file", out),
			zap.Error(err))
		out = ""
		if err := snapshotfile.Write(a.Stdout, res.Items); err != nil {
			return nil, "", fmt.Errorf("dump snapshot: %w", err)
		}
	} else {
		a.Logger.Info("Snapshot written",
			zap.String("file", out),
			zap.Int("holders", res.Holders()),
			zap.String("total", res.Total.String()))
	}

	var sinkErr error
	if a.Store != nil {
		if err := a.Store.InsertResult(ctx, res); err != nil {
			sinkErr = fmt.Errorf("store snapshot: %w", err)
		}
	}
	if a.Redis != nil {
		a.Redis.NotifySnapshot(ctx, a.Config.Notify.Redis.Channel, redis.NewSnapshotCompleted(res, out))
	}
	return res, out, sinkErr
}

// ScanWhenSettled is Scan to the default file, repeated while the chain has not yet
// produced a block after target. A scheduled tick usually runs ahead of the chain head.
func (a *App) ScanWhenSettled(ctx context.Context, target time.Time) (*snapshotmodels.Result, string, error) {
	cfg := retry.Config{
		MaxRetries:   a.Config.Schedule.SettleAttempts,
		InitialDelay: a.Config.Schedule.SettleDelay,
		MaxDelay:     a.Config.Schedule.SettleDelay,
		Multiplier:   1,
		Retryable:    awaitingBlocks,
	}

	var (
		res  *snapshotmodels.Result
		path string
	)
	err := retry.WithBackoff(ctx, cfg, a.Logger, "scheduled_scan", func() error {
		var err error
		res, path, err = a.Scan(ctx, target, "")
		return err
	})
	return res, path, err
}

// awaitingBlocks reports whether a scan failed only because no block after the target exists yet.
func awaitingBlocks(err error) bool {
	return errors.Is(err, locator.ErrExhaustedSearch) && !errors.Is(err, locator.ErrBeforeGenesis)
}

// Merge sums two snapshot files into out. No corrections or exclusions are applied.
func (a *App) Merge(first, second, out string) ([]snapshotmodels.Item, error) {
	if out == "" {
		return nil, errors.New("merge needs an output file")
	}
	a1, err := snapshotfile.ReadFile(first)
	if err != nil {
		return nil, err
	}
	a2, err := snapshotfile.ReadFile(second)
	if err != nil {
		return nil, err
	}

	merged := consolidate.Merge(a1, a2)
	if err := snapshotfile.WriteFile(out, merged); err != nil {
		return nil, err
	}

	a.Logger.Info("Snapshots merged",
		zap.String("first", first),
		zap.String("second", second),
		zap.String("file", out),
		zap.Int("holders", len(merged)),
		zap.String("total", snapshotmodels.Total(merged).String()))
	return merged, nil
}

// SetupScheduler sets up the cron scheduler. Every tick scans at the tick's own instant,
// once the chain has moved past it.
func (a *App) SetupScheduler(ctx context.Context, logger cron.Logger, cronSpec string) error {
	// Seconds field, UTC
	a.Cron = cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC), cron.WithChain(cron.Recover(logger)))

	_, err := a.Cron.AddFunc(cronSpec, func() {
		target := a.now().UTC().Truncate(time.Second)
		if _, _, err := a.ScanWhenSettled(ctx, target); err != nil {
			a.Logger.Error("Scheduled snapshot failed",
				zap.Time("target", target),
				zap.Error(err))
		}
	})
	return err
}

// Schedule runs scans on Config.Schedule.Cron until ctx is cancelled.
func (a *App) Schedule(ctx context.Context) error {
	if err := a.SetupScheduler(ctx, cron.DefaultLogger, a.Config.Schedule.Cron); err != nil {
		return fmt.Errorf("schedule.cron %q: %w", a.Config.Schedule.Cron, err)
	}
	a.Cron.Start()
	a.Logger.Info("Cron started", zap.String("cronSpec", a.Config.Schedule.Cron))

	<-ctx.Done()
	a.Logger.Info("Shutting down…")
	<-a.Cron.Stop().Done()
	return nil
}

// Stop releases the sinks.
func (a *App) Stop() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	_ = a.Logger.Sync()
}
