package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"weibocrawl/pkg/config"
	"weibocrawl/pkg/crawler"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/scheduler"
	"weibocrawl/pkg/ui"
)

var (
	schedule string
	notify   bool
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [uid]",
	Short: "Crawl a profile now and then on a schedule",
	Long: `Run the crawl immediately, then again on every tick of the schedule until
interrupted. Each run starts from the newest page; posts already recorded
are skipped. A run that is still going when the next tick fires is not
overlapped.

Schedules use cron syntax or descriptors such as "@every 6h" and "@daily".`,
	Example: `  weibocrawl watch 1234567890 --schedule "@every 2h"
  weibocrawl watch 1234567890 --schedule "30 7 * * *" --notify`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&schedule, "schedule", "", `cron schedule (default from config, "@every 6h")`)
	watchCmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification after each run")
	watchCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for the ledger and media (default: current directory)")
	watchCmd.Flags().StringVar(&storeDriver, "store", "", "ledger backend: csv or sqlite")
	watchCmd.Flags().StringVar(&cookie, "cookie", "", "session cookie or SUB token (default: stored credential)")
	watchCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored credential")
}

func runWatch(cmd *cobra.Command, args []string) error {
	flags, err := crawlFlags(args)
	if err != nil {
		return err
	}
	if schedule != "" {
		flags["schedule"] = schedule
	}
	cfg, log, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := scheduler.Validate(cfg.Schedule.Cron); err != nil {
		return err
	}
	resolveCredentials(cfg, accountName, log)

	s, err := scheduler.New(cfg.Schedule.Timezone, log)
	if err != nil {
		return err
	}
	notifier := ui.NewNotifier(notify)
	job := crawlJob(cfg, log, notifier)
	if err := s.AddJob("crawl", cfg.Schedule.Cron, job); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintInfo("Schedule", cfg.Schedule.Cron)
	// a failed first run is reported and the schedule continues
	_ = s.RunNow(ctx, "crawl", job)
	if next, ok := s.NextRun("crawl"); ok {
		ui.PrintInfo("Next run", next.Format("2006-01-02 15:04:05"))
	}
	return s.Run(ctx)
}

// crawlJob builds a fresh pipeline per run so each one rereads the ledger
// and media manifest. Scheduled runs always start at the newest page and
// leave the checkpoint of a paused manual crawl alone.
func crawlJob(cfg *config.Config, log logger.Logger, notifier *ui.Notifier) scheduler.Job {
	return func(ctx context.Context) error {
		c, closeLedger, err := newCrawler(cfg, log, false)
		if err != nil {
			notifier.SendError("weibocrawl", err.Error())
			return err
		}
		defer closeLedger()

		session, err := c.Run(ctx, crawler.RunOptions{MaxPages: cfg.Crawl.MaxPages})
		ui.PrintSession(session)
		if err != nil {
			if ctx.Err() == nil {
				notifier.SendError("weibocrawl", err.Error())
			}
			return err
		}
		if session.RowsAppended > 0 {
			notifier.SendNotification("weibocrawl", fmt.Sprintf("%d new posts from %s", session.RowsAppended, cfg.Weibo.UID))
		}
		return nil
	}
}
