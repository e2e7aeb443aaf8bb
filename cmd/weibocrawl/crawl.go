package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"weibocrawl/pkg/config"
	"weibocrawl/pkg/crawler"
	"weibocrawl/pkg/ui"
	"weibocrawl/pkg/ui/tui"
	"weibocrawl/pkg/weibo"
)

var (
	// Crawl command flags
	outputDir    string
	storeDriver  string
	maxPages     int
	cookie       string
	accountName  string
	resumeCrawl  bool
	forceRestart bool
	useTUI       bool
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl [uid]",
	Short: "Crawl a profile feed once",
	Long: `Crawl a profile's feed from the newest page until it is exhausted.

New posts are appended to the ledger and their media downloaded. Posts
already in the ledger only have missing media filled in. After every page
the position is checkpointed, so an interrupted crawl can be continued with
--resume.`,
	Example: `  # Crawl a profile into the current directory
  weibocrawl crawl 1234567890

  # Use a SQLite ledger in another directory
  weibocrawl crawl 1234567890 --output ./archive --store sqlite

  # Fetch at most five pages, then continue later
  weibocrawl crawl 1234567890 --max-pages 5
  weibocrawl crawl 1234567890 --resume

  # Watch progress on a dashboard, logging to ./archive/weibocrawl.log
  weibocrawl crawl 1234567890 --output ./archive --tui`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	addCrawlFlags(crawlCmd)
	// the root command crawls too
	addCrawlFlags(rootCmd)
}

func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for the ledger and media (default: current directory)")
	cmd.Flags().StringVar(&storeDriver, "store", "", "ledger backend: csv or sqlite")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many pages (0 = until exhausted)")
	cmd.Flags().StringVar(&cookie, "cookie", "", "session cookie or SUB token (default: stored credential)")
	cmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored credential")
	cmd.Flags().BoolVar(&resumeCrawl, "resume", false, "resume from last checkpoint")
	cmd.Flags().BoolVar(&forceRestart, "force-restart", false, "force restart, ignoring existing checkpoint")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "show a live dashboard and write logs to a file")
}

// crawlFlags collects the flags shared by crawl and watch
func crawlFlags(args []string) (map[string]interface{}, error) {
	flags := make(map[string]interface{})
	if len(args) > 0 {
		uid := weibo.SanitizeUID(args[0])
		if !weibo.IsValidUID(uid) {
			return nil, fmt.Errorf("invalid uid %q", args[0])
		}
		flags["uid"] = uid
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if storeDriver != "" {
		flags["store"] = storeDriver
	}
	if maxPages > 0 {
		flags["max-pages"] = maxPages
	}
	if cookie != "" {
		flags["cookie"] = cookie
	}
	if useTUI {
		flags["tui"] = true
	}
	return flags, nil
}

func runCrawl(cmd *cobra.Command, args []string) error {
	flags, err := crawlFlags(args)
	if err != nil {
		return err
	}
	cfg, log, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	resolveCredentials(cfg, accountName, log)

	ui.PrintInfo("Profile", weibo.ProfileURL(cfg, cfg.Weibo.UID))
	ui.PrintInfo("Ledger", cfg.StorePath())
	ui.PrintInfo("Media", cfg.MediaPath())

	if cfg.Logging.DisableConsole {
		ui.PrintInfo("Log", cfg.Logging.File)
	}

	c, closeLedger, err := newCrawler(cfg, log, true)
	if err != nil {
		return err
	}
	defer closeLedger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := crawler.RunOptions{
		Resume:       resumeCrawl,
		ForceRestart: forceRestart,
		MaxPages:     cfg.Crawl.MaxPages,
	}
	var session *crawler.Session
	if useTUI {
		session, err = runWithDashboard(ctx, stop, c, opts, cfg)
	} else {
		session, err = c.Run(ctx, opts)
	}
	if errors.Is(err, crawler.ErrCheckpointExists) {
		ui.PrintWarning("An unfinished crawl was found for this profile")
		ui.PrintInfo("Continue it", "--resume")
		ui.PrintInfo("Start over", "--force-restart")
		return err
	}
	ui.PrintSession(session)
	return err
}

type crawlResult struct {
	session *crawler.Session
	err     error
}

// runWithDashboard runs the crawl in the background while the dashboard owns
// the terminal. The dashboard closes when the crawl finishes; leaving it
// early cancels the crawl and waits for it to stop.
func runWithDashboard(ctx context.Context, stop context.CancelFunc, c *crawler.Crawler, opts crawler.RunOptions, cfg *config.Config) (*crawler.Session, error) {
	maxPages := cfg.Crawl.MaxPages
	if opts.MaxPages > 0 {
		maxPages = opts.MaxPages
	}
	terminal := tui.New(cfg.Weibo.UID, maxPages, stop)
	c.SetObserver(terminal)

	crawlDone := make(chan crawlResult, 1)
	go func() {
		session, err := c.Run(ctx, opts)
		crawlDone <- crawlResult{session: session, err: err}
	}()

	if err := terminal.Start(); err != nil {
		ui.PrintError("Dashboard failed", err)
		ui.PrintWarning("Waiting for the crawl to stop")
	}
	stop()

	result := <-crawlDone
	return result.session, result.err
}
