package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var flagDaemonNow bool

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().BoolVar(&flagDaemonNow, "now", false, "Run one watch cycle immediately on startup")
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run watch on a schedule",
	Long: `Run the watch pipeline on the cron schedule from daemon.schedule
(default "0 7 * * *", daily at 07:00). Each cycle writes the RSS feed and
HTML report; stop with SIGINT or SIGTERM.`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := setupApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Scheduled cycles always produce the feed and report; the per-run
	// watch flags only apply to interactive invocations.
	flagWatchRSS = true
	flagWatchReport = true

	cycle := func() {
		a.logger.Info("starting scheduled watch cycle")
		if err := executeWatch(ctx, a); err != nil {
			a.logger.Error("watch cycle failed", zap.Error(err))
			return
		}
		a.logger.Info("watch cycle complete")
	}

	schedule := a.settings.Daemon.Schedule
	c := cron.New()
	if _, err := c.AddFunc(schedule, cycle); err != nil {
		return fmt.Errorf("invalid daemon schedule %q: %w", schedule, err)
	}

	if flagDaemonNow {
		cycle()
	}

	fmt.Printf("Daemon running, schedule %q (Ctrl-C to stop)\n", schedule)
	c.Start()
	<-ctx.Done()

	// Let an in-flight cycle finish before exiting.
	<-c.Stop().Done()
	a.logger.Info("daemon stopped")
	return nil
}
