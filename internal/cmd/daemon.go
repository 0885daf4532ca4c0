package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/instant-demo/demopool/internal/health"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the periodic cleanup, top-up, and stats jobs",
	Long: `Daemon schedules the recurring maintenance work with cron expressions
from the configuration:

- cleanup: delete expired instances (daemon.cleanup_schedule)
- prepare: top up the prepared pool (daemon.prepare_schedule)
- stats:   append one sample row to the stats CSV (daemon.stats_schedule)

The process runs until it receives SIGINT or SIGTERM.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := a.log.WithComponent("daemon")

	c := cron.New()

	if _, err := c.AddFunc(a.cfg.Daemon.CleanupSchedule, func() {
		if deleted, err := sweep(ctx, a); err != nil {
			log.Error("cleanup job failed", "error", err)
		} else if deleted > 0 {
			log.Info("cleanup job done", "deleted", deleted)
		}
	}); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", a.cfg.Daemon.CleanupSchedule, err)
	}

	if _, err := c.AddFunc(a.cfg.Daemon.PrepareSchedule, func() {
		if created, err := a.mgr.Prepare(ctx, 0); err != nil {
			log.Error("prepare job failed", "error", err)
		} else if created > 0 {
			log.Info("prepare job done", "created", created)
		}
	}); err != nil {
		return fmt.Errorf("invalid prepare schedule %q: %w", a.cfg.Daemon.PrepareSchedule, err)
	}

	if _, err := c.AddFunc(a.cfg.Daemon.StatsSchedule, func() {
		if err := sampleStats(ctx, a); err != nil {
			log.Error("stats job failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid stats schedule %q: %w", a.cfg.Daemon.StatsSchedule, err)
	}

	c.Start()
	log.Info("daemon started",
		"cleanup", a.cfg.Daemon.CleanupSchedule,
		"prepare", a.cfg.Daemon.PrepareSchedule,
		"stats", a.cfg.Daemon.StatsSchedule)
	fmt.Println("Daemon running. Press Ctrl+C to stop.")

	<-ctx.Done()

	// Let a running job finish before returning.
	<-c.Stop().Done()
	log.Info("daemon stopped")
	return nil
}

// sampleStats appends one report row to the stats CSV file, writing the
// header first on a fresh file.
func sampleStats(ctx context.Context, a *app) error {
	rep, err := a.eval.Report(ctx)
	if err != nil {
		return err
	}

	path := a.cfg.Paths.StatsFile()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open stats file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(health.CSVHeader()); err != nil {
			return err
		}
	}
	if err := w.Write(rep.CSVRow()); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
