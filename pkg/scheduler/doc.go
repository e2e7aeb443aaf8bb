// Package scheduler repeats the incremental crawl on a cron schedule for
// watch mode.
package scheduler
