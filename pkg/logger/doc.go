// Package logger is the structured logging facade used across the crawler.
//
// It wraps zerolog behind a small interface so that components take a Logger
// and tests can substitute NewNopLogger or NewTestLogger.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("uid", cfg.Weibo.UID)
//	log.InfoWithFields("page ingested", map[string]interface{}{
//	    "page":   3,
//	    "posts":  10,
//	    "cursor": "4978123456789012",
//	})
//
// Console output is colorized and goes to stderr. When a log file is
// configured, JSON lines are appended to it as well.
package logger
