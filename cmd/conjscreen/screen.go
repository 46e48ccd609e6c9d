package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/conjscreen/internal/config"
	"github.com/star/conjscreen/internal/propagation"
	"github.com/star/conjscreen/internal/report"
	"github.com/star/conjscreen/internal/screening"
)

type screenFlags struct {
	catalog   catalogFlags
	target    int
	threshold float64
	floor     float64
	horizon   time.Duration
	step      time.Duration
	epoch     string
	workers   int
	batchSize int
	format    string
	timeout   time.Duration
}

// apply copies every flag the user set over cfg.
func (f *screenFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	f.catalog.apply(cmd, &cfg.Catalog)

	s := &cfg.Screening
	flags := cmd.Flags()
	if flags.Changed("target") {
		s.TargetID = f.target
	}
	if flags.Changed("threshold") {
		s.ThresholdKm = f.threshold
	}
	if flags.Changed("floor") {
		s.FloorKm = f.floor
	}
	if flags.Changed("horizon") {
		s.Horizon = f.horizon
	}
	if flags.Changed("step") {
		s.Step = f.step
	}
	if flags.Changed("workers") {
		s.Workers = f.workers
	}
	if flags.Changed("batch-size") {
		s.BatchSize = f.batchSize
	}
	if flags.Changed("epoch") {
		t, err := time.Parse(time.RFC3339, f.epoch)
		if err != nil {
			return fmt.Errorf("%w: --epoch: %v", screening.ErrInvalidConfiguration, err)
		}
		s.Epoch = t
	}
	if s.TargetID <= 0 {
		return fmt.Errorf("%w: a target NORAD ID is required (--target)", screening.ErrInvalidConfiguration)
	}
	return nil
}

func screenCmd(gf *globalFlags) *cobra.Command {
	var sf screenFlags

	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Run one conjunction screening and print the ranked report",
		Example: `  conjscreen screen --target 25544
  conjscreen screen --target 25544 --tle-file active.tle --threshold 50 --horizon 12h --format csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(gf)
			if err != nil {
				return err
			}
			if err := sf.apply(cmd, &cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%w: %v", screening.ErrInvalidConfiguration, err)
			}
			format, err := report.ParseFormat(sf.format)
			if err != nil {
				return fmt.Errorf("%w: %v", screening.ErrInvalidConfiguration, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if sf.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, sf.timeout)
				defer cancel()
			}

			ds, err := newCatalogSource(cfg.Catalog, logger).load(ctx)
			if err != nil {
				return err
			}

			adapter := propagation.NewSGP4Adapter(logger)
			adapter.Prepare(ds)
			engine := screening.NewEngine(adapter, cfg.Screening.EngineOptions(), logger)

			progress := screening.WithProgress(func(done, total int) {
				logger.Debug("screening progress", "done", done, "total", total)
			})
			rep, err := engine.ScreenCatalog(ctx, ds.Satellites, cfg.Screening.RunConfig(time.Now()), progress)
			if err != nil {
				return err
			}

			return report.Render(os.Stdout, report.Summarize(rep, cfg.Screening.Tiers), format)
		},
	}

	sf.catalog.register(cmd)
	flags := cmd.Flags()
	flags.IntVar(&sf.target, "target", 0, "NORAD ID of the object to protect")
	flags.Float64Var(&sf.threshold, "threshold", screening.DefaultThresholdKm, "Report objects closer than this (km)")
	flags.Float64Var(&sf.floor, "floor", screening.DefaultFloorKm, "Ignore objects at or below this distance (km)")
	flags.DurationVar(&sf.horizon, "horizon", screening.DefaultHorizon, "Screening window length")
	flags.DurationVar(&sf.step, "step", screening.DefaultStep, "Sampling interval")
	flags.StringVar(&sf.epoch, "epoch", "", "Window start, RFC 3339 (default: now)")
	flags.IntVar(&sf.workers, "workers", 0, "Parallel propagation workers (default: number of CPUs)")
	flags.IntVar(&sf.batchSize, "batch-size", 0, "Candidates per batch between cancellation checks")
	flags.StringVar(&sf.format, "format", string(report.FormatTable), "Output format (table, csv, json)")
	flags.DurationVar(&sf.timeout, "timeout", 0, "Abort the run after this long (0 for no limit)")
	return cmd
}
