// Package media downloads the images and video attached to a post into the
// flat media directory.
package media

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"path"

	"weibocrawl/pkg/config"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/models"
	"weibocrawl/pkg/retry"
	"weibocrawl/pkg/storage"
)

// Fetcher retrieves remote assets.
type Fetcher interface {
	Download(ctx context.Context, url string) ([]byte, error)
	Stream(ctx context.Context, url string, w io.Writer) (int64, error)
}

// Result summarizes one post's acquisition.
type Result struct {
	ImagesSaved   int
	ImagesPresent int
	ImagesFailed  int
	// Video is the value for the ledger's video column: empty, a path
	// relative to the output directory, or models.VideoFailed.
	Video      string
	VideoSaved bool
}

// Acquirer downloads post media. Failures never abort the crawl; they are
// logged and reflected in the Result.
type Acquirer struct {
	fetcher Fetcher
	store   *storage.Manager
	cfg     config.DownloadConfig
	// folder is the media directory name as recorded in the ledger
	folder string
	log    logger.Logger
}

// NewAcquirer creates an acquirer writing into store.
func NewAcquirer(fetcher Fetcher, store *storage.Manager, cfg *config.Config, log logger.Logger) *Acquirer {
	return &Acquirer{
		fetcher: fetcher,
		store:   store,
		cfg:     cfg.Download,
		folder:  cfg.Output.MediaDir,
		log:     log,
	}
}

// Folder is the media directory name recorded in each row.
func (a *Acquirer) Folder() string {
	return a.folder
}

// AssetKey identifies an asset across runs. CDN host and signed query
// parameters vary between responses, so only the path is used.
func AssetKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return rawURL
	}
	return u.Path
}

// Acquire fetches whatever media of post is not already on disk.
func (a *Acquirer) Acquire(ctx context.Context, post models.Post) Result {
	var res Result

	if !a.cfg.SkipImages {
		for _, u := range post.Images {
			if ctx.Err() != nil {
				return res
			}
			switch a.acquireImage(ctx, post, u) {
			case outcomeSaved:
				res.ImagesSaved++
			case outcomePresent:
				res.ImagesPresent++
			case outcomeFailed:
				res.ImagesFailed++
			}
		}
	}

	if post.Video != "" && !a.cfg.SkipVideos && ctx.Err() == nil {
		res.Video, res.VideoSaved = a.acquireVideo(ctx, post)
	}
	return res
}

type outcome int

const (
	outcomeSaved outcome = iota
	outcomePresent
	outcomeFailed
)

func (a *Acquirer) acquireImage(ctx context.Context, post models.Post, imageURL string) outcome {
	key := AssetKey(imageURL)
	if _, ok := a.store.Lookup(key); ok {
		logger.LogDownload(a.log, post.ID, "image", "", nil)
		return outcomePresent
	}

	name := a.store.NextFreeName(post.DatePrefix, "jpg")
	data, err := retry.DoWithResult(func() ([]byte, error) {
		return a.fetcher.Download(ctx, imageURL)
	}, &retry.Config{
		MaxAttempts: a.cfg.ImageAttempts,
		Backoff:     &retry.ConstantBackoff{Delay: a.cfg.ImageRetryDelay},
		RetryIf:     func(error) bool { return ctx.Err() == nil },
		Context:     ctx,
		Logger:      a.log,
		Operation:   "download image",
	})
	if err == nil {
		err = a.store.SaveFile(bytes.NewReader(data), name)
	}
	if err != nil {
		a.store.Release(name)
		logger.LogDownload(a.log, post.ID, "image", name, err)
		return outcomeFailed
	}

	a.record(key, name)
	logger.LogDownload(a.log, post.ID, "image", name, nil)
	return outcomeSaved
}

func (a *Acquirer) acquireVideo(ctx context.Context, post models.Post) (string, bool) {
	key := AssetKey(post.Video)
	if name, ok := a.store.Lookup(key); ok {
		return path.Join(a.folder, name), false
	}

	name := a.store.NextFreeName(post.DatePrefix, "mp4")
	tmp, err := a.store.CreateTemp(name)
	if err != nil {
		a.store.Release(name)
		logger.LogDownload(a.log, post.ID, "video", name, err)
		return models.VideoFailed, false
	}

	if _, err := a.fetcher.Stream(ctx, post.Video, tmp); err != nil {
		tmp.Abort()
		logger.LogDownload(a.log, post.ID, "video", name, err)
		return models.VideoFailed, false
	}
	if err := tmp.Commit(); err != nil {
		logger.LogDownload(a.log, post.ID, "video", name, err)
		return models.VideoFailed, false
	}

	a.record(key, name)
	logger.LogDownload(a.log, post.ID, "video", name, nil)
	return path.Join(a.folder, name), true
}

// record notes the asset in the manifest. A failure only costs a duplicate
// download on a later run.
func (a *Acquirer) record(key, name string) {
	if err := a.store.Record(key, name); err != nil {
		a.log.WithError(err).WarnWithFields("Failed to update media manifest", map[string]interface{}{
			"file": name,
		})
	}
}
