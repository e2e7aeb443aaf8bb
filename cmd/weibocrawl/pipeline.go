package main

import (
	"errors"
	"fmt"

	"weibocrawl/pkg/auth"
	"weibocrawl/pkg/checkpoint"
	"weibocrawl/pkg/config"
	"weibocrawl/pkg/crawler"
	"weibocrawl/pkg/ledger"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/media"
	"weibocrawl/pkg/storage"
	"weibocrawl/pkg/ui"
	"weibocrawl/pkg/weibo"
)

// newCrawler wires the client, ledger and media store for cfg, plus the
// per-feed checkpoint when resumable is set. The returned close func releases
// the ledger.
func newCrawler(cfg *config.Config, log logger.Logger, resumable bool) (*crawler.Crawler, func() error, error) {
	client, err := weibo.NewClient(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	store, err := ledger.OpenStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	led := ledger.New(store, log)

	files, err := storage.NewManager(cfg.MediaPath())
	if err != nil {
		led.Close()
		return nil, nil, err
	}
	acquirer := media.NewAcquirer(client, files, cfg, log)

	c := crawler.New(cfg, client, led, acquirer, log)
	if !resumable {
		return c, led.Close, nil
	}

	cps, err := checkpoint.NewManager(cfg.ResolvedContainerID(), log)
	if err != nil {
		log.WithError(err).Warn("Checkpoints disabled")
	} else {
		c.SetCheckpoints(cps)
	}
	return c, led.Close, nil
}

// resolveCredentials fills in the session cookie from the credential store
// when neither flags, environment nor config supplied one.
func resolveCredentials(cfg *config.Config, name string, log logger.Logger) {
	if cfg.Weibo.Cookie != "" && name == "" {
		log.Debug("Using session cookie from configuration")
		return
	}

	mgr, err := auth.NewManager(log)
	if err == nil {
		var cred *auth.Credential
		if cred, err = mgr.Retrieve(name); err == nil {
			cfg.Weibo.Cookie = cred.Cookie
			if cred.UserAgent != "" {
				cfg.Weibo.UserAgent = cred.UserAgent
			}
			log.WithField("credential", cred.Name).Info("Using stored credentials")
			return
		}
	}

	if errors.Is(err, auth.ErrCredentialsNotFound) && name == "" {
		log.Warn("No session cookie configured; the feed may return nothing")
		ui.PrintWarning("No session cookie found. Store one with 'weibocrawl auth set'")
		return
	}
	log.WithError(err).Warn("Could not load stored credentials")
	ui.PrintWarning(fmt.Sprintf("Could not load credential %q", name), err)
}
