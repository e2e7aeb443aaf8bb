package ledger

import (
	"context"

	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/models"
)

// Ledger pairs a Store with the set of IDs it already holds. An ID enters
// the set only after its row has been durably written, so a failed write is
// retried on the next encounter.
type Ledger struct {
	store Store
	seen  map[string]struct{}
	log   logger.Logger
}

// New wraps store. Call Load before use.
func New(store Store, log logger.Logger) *Ledger {
	return &Ledger{store: store, seen: make(map[string]struct{}), log: log}
}

// Load reads the recorded IDs into memory.
func (l *Ledger) Load(ctx context.Context) error {
	ids, err := l.store.Load(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		l.seen[id] = struct{}{}
	}
	l.log.InfoWithFields("Ledger loaded", map[string]interface{}{"ids": len(l.seen)})
	return nil
}

// CheckWritable fails when the store cannot currently be written.
func (l *Ledger) CheckWritable(ctx context.Context) error {
	return l.store.CheckWritable(ctx)
}

// Contains reports whether id has been recorded.
func (l *Ledger) Contains(id string) bool {
	_, ok := l.seen[id]
	return ok
}

// Len is the number of recorded IDs.
func (l *Ledger) Len() int {
	return len(l.seen)
}

// Record appends row unless its ID is already present. It returns true when
// a row was written.
func (l *Ledger) Record(ctx context.Context, row models.Row) (bool, error) {
	if l.Contains(row.ID) {
		return false, nil
	}
	if err := l.store.Append(ctx, row); err != nil {
		return false, err
	}
	l.seen[row.ID] = struct{}{}
	return true, nil
}

// Close closes the underlying store.
func (l *Ledger) Close() error {
	return l.store.Close()
}
