package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogPage records the outcome of one feed page
func LogPage(log Logger, page int, cursor string, posts int, elapsed time.Duration) {
	log.InfoWithFields("Page ingested", map[string]interface{}{
		"page":        page,
		"cursor":      cursor,
		"posts":       posts,
		"duration_ms": elapsed.Milliseconds(),
	})
}

// LogDownload logs a single media asset acquisition
func LogDownload(log Logger, postID, kind, file string, err error) {
	fields := map[string]interface{}{
		"post_id": postID,
		"kind":    kind,
	}
	if file != "" {
		fields["file"] = file
	}

	switch {
	case err != nil:
		log.WithError(err).WarnWithFields("Download failed", fields)
	case file == "":
		log.DebugWithFields("Download skipped", fields)
	default:
		log.DebugWithFields("Download completed", fields)
	}
}

// LogRetry logs a retry scheduled after a failed attempt
func LogRetry(log Logger, operation string, attempt int, delay time.Duration, err error) {
	log.WithError(err).WarnWithFields("Retrying after failure", map[string]interface{}{
		"operation": operation,
		"attempt":   attempt,
		"delay":     delay,
	})
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }

// LogIngest records what happened to a single post
func LogIngest(log Logger, postID, outcome string, images int, video string) {
	log.DebugWithFields("Post ingested", map[string]interface{}{
		"post_id": postID,
		"outcome": outcome,
		"images":  images,
		"video":   video,
	})
}
