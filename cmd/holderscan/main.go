package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/canopy-network/holderscan/app/holderscan"
	"github.com/canopy-network/holderscan/pkg/snapshot"
	"gopkg.in/urfave/cli.v1"
)

var (
	configFlag = cli.StringFlag{
		Name:   "config",
		Usage:  "YAML configuration file (default: built-in SIFT/XSFT deployment)",
		EnvVar: "HOLDERSCAN_CONFIG",
	}
	atFlag = cli.StringFlag{
		Name:  "at",
		Usage: `snapshot time in UTC, "2006-01-02 15:04:05" (default: today 10:00, or yesterday's if still ahead)`,
	}
	outFlag = cli.StringFlag{
		Name:  "out",
		Usage: "output CSV file",
	}
	cronFlag = cli.StringFlag{
		Name:  "cron",
		Usage: "cron spec with a seconds field, evaluated in UTC (default: schedule.cron)",
	}
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	if err := newApp(ctx).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

func newApp(ctx context.Context) *cli.App {
	app := cli.NewApp()
	app.Name = "holderscan"
	app.Usage = "rebuild token holder balances at a point in time"
	app.Commands = []cli.Command{
		{
			Action:    func(c *cli.Context) error { return scanAction(ctx, c) },
			Name:      "scan",
			Usage:     "Take a holder snapshot",
			ArgsUsage: " ",
			Flags:     []cli.Flag{configFlag, atFlag, outFlag},
		},
		{
			Action:    mergeAction,
			Name:      "merge",
			Usage:     "Sum two snapshot files into one",
			ArgsUsage: "<file1> <file2>",
			Flags:     []cli.Flag{configFlag, outFlag},
		},
		{
			Action:    func(c *cli.Context) error { return scheduleAction(ctx, c) },
			Name:      "schedule",
			Usage:     "Take snapshots on a cron schedule until interrupted",
			ArgsUsage: " ",
			Flags:     []cli.Flag{configFlag, cronFlag},
		},
	}
	return app
}

func scanAction(ctx context.Context, c *cli.Context) error {
	target, err := snapshot.ParseTarget(c.String(atFlag.Name), time.Now())
	if err != nil {
		return err
	}

	a, err := holderscan.Initialize(c.String(configFlag.Name))
	if err != nil {
		return err
	}
	defer a.Stop()

	if err := a.OpenSinks(ctx); err != nil {
		return fmt.Errorf("open snapshot sinks: %w", err)
	}

	_, _, err = a.Scan(ctx, target, c.String(outFlag.Name))
	return err
}

func mergeAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("merge needs exactly two snapshot files, got %d", c.NArg())
	}

	a, err := holderscan.Initialize(c.String(configFlag.Name))
	if err != nil {
		return err
	}
	defer a.Stop()

	_, err = a.Merge(c.Args().Get(0), c.Args().Get(1), c.String(outFlag.Name))
	return err
}

func scheduleAction(ctx context.Context, c *cli.Context) error {
	a, err := holderscan.Initialize(c.String(configFlag.Name))
	if err != nil {
		return err
	}
	defer a.Stop()

	if spec := c.String(cronFlag.Name); spec != "" {
		a.Config.Schedule.Cron = spec
	}
	if err := a.OpenSinks(ctx); err != nil {
		return fmt.Errorf("open snapshot sinks: %w", err)
	}

	return a.Schedule(ctx)
}
