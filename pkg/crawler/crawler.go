package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"weibocrawl/pkg/checkpoint"
	"weibocrawl/pkg/config"
	errs "weibocrawl/pkg/errors"
	"weibocrawl/pkg/extract"
	"weibocrawl/pkg/ledger"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/media"
	"weibocrawl/pkg/models"
	"weibocrawl/pkg/normalize"
	"weibocrawl/pkg/ratelimit"
	"weibocrawl/pkg/retry"
	"weibocrawl/pkg/weibo"
)

// ErrCheckpointExists is returned when an unfinished run was found and the
// caller asked neither to resume it nor to discard it.
var ErrCheckpointExists = errors.New("checkpoint exists - use --resume to continue or --force-restart to start fresh")

// Fetcher retrieves one feed page.
type Fetcher interface {
	FetchPage(ctx context.Context, cursor string) (*weibo.Page, error)
}

// Acquirer downloads a post's media.
type Acquirer interface {
	Acquire(ctx context.Context, post models.Post) media.Result
	Folder() string
}

// Observer follows a run while it is in flight. Calls are made from the
// goroutine running Run and receive a copy of the session.
type Observer interface {
	// Update reports a state change or a finished page
	Update(s Session)
	PostIngested(s Session, postID string, outcome Outcome)
	Finished(s Session)
}

// Outcome is what happened to a post's row
type Outcome string

const (
	OutcomeAppended  Outcome = "appended"
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeDeferred rows failed to write and are retried on a later run
	OutcomeDeferred Outcome = "deferred"
)

// RunOptions controls a single Run.
type RunOptions struct {
	// Resume continues from a saved checkpoint
	Resume bool
	// ForceRestart discards a saved checkpoint
	ForceRestart bool
	// MaxPages overrides crawl.max_pages when positive
	MaxPages int
}

// Crawler drives the page loop: fetch, extract, normalize, acquire, record.
type Crawler struct {
	cfg         *config.Config
	fetcher     Fetcher
	ledger      *ledger.Ledger
	acquirer    Acquirer
	limiter     ratelimit.Limiter
	checkpoints *checkpoint.Manager
	observer    Observer
	logger      logger.Logger
}

// New creates a crawler pacing pages by the configured jitter.
func New(cfg *config.Config, fetcher Fetcher, l *ledger.Ledger, acquirer Acquirer, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Crawler{
		cfg:      cfg,
		fetcher:  fetcher,
		ledger:   l,
		acquirer: acquirer,
		limiter:  ratelimit.NewPacer(cfg.Crawl.PageDelayMin, cfg.Crawl.PageDelayMax),
		logger:   log,
	}
}

// SetLimiter replaces the inter-page pacer
func (c *Crawler) SetLimiter(l ratelimit.Limiter) {
	c.limiter = l
}

// SetObserver registers o to follow every subsequent run
func (c *Crawler) SetObserver(o Observer) {
	c.observer = o
}

// SetCheckpoints enables resumable runs backed by m
func (c *Crawler) SetCheckpoints(m *checkpoint.Manager) {
	c.checkpoints = m
}

// Run crawls until the feed is exhausted, the page limit is reached, a fatal
// error occurs or ctx is cancelled. The returned session is never nil.
func (c *Crawler) Run(ctx context.Context, opts RunOptions) (*Session, error) {
	s := &Session{
		RunID:     uuid.NewString(),
		UID:       c.cfg.Weibo.UID,
		State:     StateIdle,
		StartedAt: time.Now(),
	}
	log := c.logger.WithFields(map[string]interface{}{
		"run_id": s.RunID,
		"uid":    s.UID,
	})

	if err := c.preflight(ctx); err != nil {
		return c.abort(s, log, err)
	}

	cp, err := c.prepareCheckpoint(s, opts, log)
	if err != nil {
		return c.abort(s, log, err)
	}

	maxPages := c.cfg.Crawl.MaxPages
	if opts.MaxPages > 0 {
		maxPages = opts.MaxPages
	}

	log.InfoWithFields("Starting crawl", map[string]interface{}{
		"container_id": c.cfg.ResolvedContainerID(),
		"cursor":       s.Cursor,
		"resumed":      s.Resumed,
		"known_ids":    c.ledger.Len(),
	})

	c.limiter.Reset()
	fetched := 0
	for {
		if maxPages > 0 && fetched >= maxPages {
			log.InfoWithFields("Page limit reached", map[string]interface{}{
				"max_pages": maxPages,
				"cursor":    s.Cursor,
			})
			break
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return c.abort(s, log, err)
		}

		start := time.Now()
		s.State = StateFetching
		c.update(s)
		page, err := c.fetch(ctx, s.Cursor, log)
		if err != nil {
			return c.abort(s, log, err)
		}
		fetched++

		s.State = StateExtracting
		if page.OK != 1 {
			log.WarnWithFields("Feed reported failure, extracting anyway", map[string]interface{}{
				"ok":     page.OK,
				"msg":    page.Msg,
				"cursor": s.Cursor,
			})
		}

		posts := c.ingestPage(ctx, s, page, log)
		if ctx.Err() != nil {
			// the page is replayed on resume; the cursor has not moved
			return c.abort(s, log, ctx.Err())
		}
		s.Pages++
		logger.LogPage(log, s.Pages, s.Cursor, posts, time.Since(start))
		c.update(s)

		if !page.HasNext() {
			s.State = StateExhausted
			c.finishCheckpoint(log)
			break
		}
		s.Cursor = page.NextCursor
		c.saveCheckpoint(cp, s, log)
		s.State = StateIdle
	}

	s.FinishedAt = time.Now()
	log.InfoWithFields("Crawl finished", s.Fields())
	c.finished(s)
	return s, nil
}

// preflight loads the ledger and proves it can be appended to. Both failures
// are fatal.
func (c *Crawler) preflight(ctx context.Context) error {
	if err := c.ledger.Load(ctx); err != nil {
		return err
	}
	return c.ledger.CheckWritable(ctx)
}

func (c *Crawler) fetch(ctx context.Context, cursor string, log logger.Logger) (*weibo.Page, error) {
	return retry.DoWithResult(func() (*weibo.Page, error) {
		return c.fetcher.FetchPage(ctx, cursor)
	}, &retry.Config{
		MaxAttempts: 0,
		Backoff:     &retry.ConstantBackoff{Delay: c.cfg.Crawl.NetworkRetryDelay},
		RetryIf:     errs.IsTransient,
		Context:     ctx,
		Logger:      log.WithField("cursor", cursor),
		Operation:   "fetch page",
	})
}

// ingestPage walks every post on the page. It returns the number of posts
// found.
func (c *Crawler) ingestPage(ctx context.Context, s *Session, page *weibo.Page, log logger.Logger) int {
	found := 0
	for raw := range extract.Posts(page.Raw) {
		if ctx.Err() != nil {
			break
		}
		found++
		post, ok := normalize.Post(raw, log)
		if !ok {
			s.Skipped++
			c.update(s)
			continue
		}
		c.ingest(ctx, s, post, log)
	}
	return found
}

// ingest acquires media for post and appends its row if the ID is new.
// Media is acquired for known IDs too so assets missing from an earlier run
// are filled in.
func (c *Crawler) ingest(ctx context.Context, s *Session, post models.Post, log logger.Logger) {
	s.PostsSeen++
	res := c.acquirer.Acquire(ctx, post)
	s.add(res)
	if ctx.Err() != nil {
		return
	}

	row := models.Row{
		ID:          post.ID,
		PublishedAt: post.Display,
		Text:        post.Text,
		MediaFolder: c.acquirer.Folder(),
		Video:       res.Video,
	}
	written, err := c.ledger.Record(ctx, row)
	var outcome Outcome
	switch {
	case err != nil:
		s.Deferred++
		outcome = OutcomeDeferred
		log.WithError(err).WarnWithFields("Row deferred", map[string]interface{}{
			"post_id":    post.ID,
			"error_type": string(errs.TypeOf(err)),
		})
	case written:
		s.RowsAppended++
		outcome = OutcomeAppended
	default:
		s.Duplicates++
		outcome = OutcomeDuplicate
	}
	logger.LogIngest(log, post.ID, string(outcome), res.ImagesSaved+res.ImagesPresent, res.Video)
	if c.observer != nil {
		c.observer.PostIngested(*s, post.ID, outcome)
	}
}

func (c *Crawler) abort(s *Session, log logger.Logger, err error) (*Session, error) {
	s.State = StateAborted
	s.Err = err
	s.FinishedAt = time.Now()
	log.WithError(err).ErrorWithFields("Crawl aborted", s.Fields())
	c.finished(s)
	return s, fmt.Errorf("crawl aborted: %w", err)
}

func (c *Crawler) update(s *Session) {
	if c.observer != nil {
		c.observer.Update(*s)
	}
}

func (c *Crawler) finished(s *Session) {
	if c.observer != nil {
		c.observer.Finished(*s)
	}
}

// prepareCheckpoint applies the resume options and returns the checkpoint to
// advance, or nil when checkpoints are disabled or could not be created.
func (c *Crawler) prepareCheckpoint(s *Session, opts RunOptions, log logger.Logger) (*checkpoint.Checkpoint, error) {
	m := c.checkpoints
	if m == nil {
		return nil, nil
	}

	var cp *checkpoint.Checkpoint
	switch {
	case opts.ForceRestart && m.Exists():
		if err := m.Delete(); err != nil {
			log.WithError(err).Warn("Failed to delete existing checkpoint")
		}
		log.Info("Ignoring existing checkpoint")
	case opts.Resume && m.Exists():
		loaded, err := m.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if loaded != nil && loaded.ContainerID != c.cfg.ResolvedContainerID() {
			log.WarnWithFields("Checkpoint belongs to another feed, starting over", map[string]interface{}{
				"checkpoint_container": loaded.ContainerID,
			})
			loaded = nil
		}
		if loaded != nil {
			cp = loaded
			cp.RunID = s.RunID
			s.resumeFrom(cp)
			log.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
				"cursor": cp.Cursor,
				"pages":  cp.Pages,
			})
		}
	case m.Exists():
		return nil, ErrCheckpointExists
	}

	if cp == nil {
		created, err := m.Create(s.UID, c.cfg.ResolvedContainerID(), s.RunID)
		if err != nil {
			log.WithError(err).Warn("Failed to create checkpoint, continuing without one")
			return nil, nil
		}
		cp = created
	}
	return cp, nil
}

func (c *Crawler) saveCheckpoint(cp *checkpoint.Checkpoint, s *Session, log logger.Logger) {
	if cp == nil {
		return
	}
	if err := c.checkpoints.Advance(cp, s.Cursor, s.Pages, s.PostsSeen, s.RowsAppended, s.priorAssets+s.AssetsSaved()); err != nil {
		log.WithError(err).Warn("Failed to update checkpoint")
	}
}

func (c *Crawler) finishCheckpoint(log logger.Logger) {
	if c.checkpoints == nil || !c.checkpoints.Exists() {
		return
	}
	if err := c.checkpoints.Delete(); err != nil {
		log.WithError(err).Warn("Failed to delete checkpoint")
		return
	}
	log.Debug("Checkpoint deleted after reaching the end of the feed")
}
