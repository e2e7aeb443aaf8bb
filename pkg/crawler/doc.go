// Package crawler walks a profile feed page by page and ingests every post
// it finds.
//
// A run is strictly sequential. Each page is fetched, every post on it is
// normalized, its media acquired and its row appended to the ledger before
// the cursor advances and the next page is requested. Because the cursor only
// moves after a complete page, an interrupted run can be resumed from its
// checkpoint and the ledger drops the rows it already holds.
//
// Transient network failures on page fetches are retried without limit at a
// fixed delay. Status errors, unparsable payloads and pre-flight ledger
// failures abort the run. Per-post failures never do.
//
// Basic usage:
//
//	c := crawler.New(cfg, client, led, acquirer, log)
//	c.SetCheckpoints(checkpoints)
//	session, err := c.Run(ctx, crawler.RunOptions{Resume: true})
package crawler
