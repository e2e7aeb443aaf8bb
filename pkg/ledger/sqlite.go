package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"weibocrawl/pkg/models"
)

// SQLiteStore keeps the ledger in a SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens the database at path and creates the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, classify(err, "create ledger directory")
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, classify(err, fmt.Sprintf("open sqlite %s", path))
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, classify(err, "run migrations")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, "SELECT id FROM posts WHERE id != '' ORDER BY recorded_at, rowid"); err != nil {
		return nil, classify(err, "load ledger ids")
	}
	return ids, nil
}

// CheckWritable takes and releases the write lock.
func (s *SQLiteStore) CheckWritable(ctx context.Context) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return classify(err, "ledger is not writable")
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return classify(err, "ledger is not writable")
	}
	_, err = conn.ExecContext(ctx, "ROLLBACK")
	return classify(err, "release ledger lock")
}

func (s *SQLiteStore) Append(ctx context.Context, row models.Row) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO posts (id, published_at, text, media_folder, video)
		VALUES (:id, :published_at, :text, :media_folder, :video)
		ON CONFLICT(id) DO NOTHING
	`, row)
	if err != nil {
		return classify(err, fmt.Sprintf("insert post %s", row.ID))
	}
	return nil
}

// Rows returns every recorded row in insertion order.
func (s *SQLiteStore) Rows(ctx context.Context) ([]models.Row, error) {
	var rows []models.Row
	err := s.db.SelectContext(ctx, &rows,
		"SELECT id, published_at, text, media_folder, video FROM posts ORDER BY rowid")
	if err != nil {
		return nil, classify(err, "list ledger rows")
	}
	return rows, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
