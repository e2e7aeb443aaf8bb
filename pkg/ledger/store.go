// Package ledger is the persisted, append-only record of ingested posts and
// the in-memory set of identifiers already recorded.
package ledger

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"

	"weibocrawl/pkg/config"
	"weibocrawl/pkg/errors"
	"weibocrawl/pkg/models"
)

// Store persists ledger rows.
type Store interface {
	// Load prepares the store for appending and returns every recorded ID.
	Load(ctx context.Context) ([]string, error)
	// CheckWritable fails fast when another process holds the store.
	CheckWritable(ctx context.Context) error
	// Append durably writes one row.
	Append(ctx context.Context, row models.Row) error
	Close() error
}

// OpenStore returns the store selected by cfg.Store.Driver.
func OpenStore(cfg *config.Config) (Store, error) {
	switch cfg.Store.Driver {
	case "", "csv":
		return NewCSVStore(cfg.StorePath()), nil
	case "sqlite":
		return NewSQLiteStore(cfg.StorePath())
	default:
		return nil, errors.New(errors.ErrorTypePersistence, fmt.Sprintf("unknown store driver %q", cfg.Store.Driver))
	}
}

// classify maps a write failure to persistence_lock when the store is held by
// another program, and to persistence otherwise.
func classify(err error, message string) error {
	if err == nil {
		return nil
	}
	var typed *errors.Error
	if stderrors.As(err, &typed) {
		return err
	}
	if isLockError(err) {
		return errors.Wrap(errors.ErrorTypePersistenceLock, err, message)
	}
	return errors.Wrap(errors.ErrorTypePersistence, err, message)
}

func isLockError(err error) bool {
	if stderrors.Is(err, fs.ErrPermission) ||
		stderrors.Is(err, syscall.EBUSY) ||
		stderrors.Is(err, syscall.ETXTBSY) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "used by another process")
}
