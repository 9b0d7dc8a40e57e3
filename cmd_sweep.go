package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"camdvr/config"
	"camdvr/sweep"
)

var (
	sweepMaxAge  int
	sweepDryRun  bool
	sweepBaseDir string
	sweepEvery   time.Duration
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired, unprotected continuous recordings",
	Long: `Deletes continuous recordings older than the retention age. Recordings
marked retain (pre-event artifacts and segments overlapping an event window)
are never deleted, and neither is any video file lacking a sidecar.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep()
	},
}

func init() {
	sweepCmd.Flags().IntVar(&sweepMaxAge, "max-age", 0, "Maximum age in days for continuous recordings (0 = from config)")
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "Only report what would be deleted")
	sweepCmd.Flags().StringVar(&sweepBaseDir, "base-dir", "", "Override recording directory from config")
	sweepCmd.Flags().DurationVar(&sweepEvery, "every", 0, "Repeat the sweep at this interval (0 = run once)")
}

func runSweep() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	baseDir := sweepBaseDir
	maxAge := sweepMaxAge
	if baseDir == "" || maxAge == 0 {
		if err := config.Load(ctx, configPath); err != nil {
			return fmt.Errorf("no --base-dir/--max-age and config unavailable: %v", err)
		}
		cfg := config.Get()
		if baseDir == "" {
			baseDir = cfg.Recording.BaseDir
		}
		if maxAge == 0 {
			maxAge = cfg.Retention.MaxAgeDays
		}
	}

	runOnce := func() error {
		report, err := sweep.Clean(baseDir, maxAge, sweepDryRun)
		if err != nil {
			return err
		}
		if report.DryRun {
			log.Infof("Dry run: %d recording(s) totaling %d bytes would be deleted", report.Deleted, report.DeletedBytes)
		}
		return nil
	}

	if err := runOnce(); err != nil {
		return err
	}
	if sweepEvery == 0 {
		return nil
	}

	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// Pick up retention changes from config reloads.
			if sweepMaxAge == 0 {
				if cfg := config.Get(); cfg != nil {
					maxAge = cfg.Retention.MaxAgeDays
				}
			}
			if err := runOnce(); err != nil {
				log.Errorf("Sweep failed: %v", err)
			}
		}
	}
}
