package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"weibocrawl/pkg/errors"
	"weibocrawl/pkg/models"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// CSVStore keeps the ledger in a UTF-8 (with BOM) CSV file so that
// spreadsheet tools open it with the right encoding.
type CSVStore struct {
	path string
}

// NewCSVStore returns a store backed by the file at path.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the ledger file location.
func (s *CSVStore) Path() string {
	return s.path
}

// BackupPath is where the pre-migration copy of a legacy ledger is kept.
func (s *CSVStore) BackupPath() string {
	return s.path + ".backup"
}

// Load reads recorded IDs. A missing or empty file gets a fresh header. A
// three-column legacy file is backed up and migrated in place. A four- or
// five-column file is read as current. Anything else is a schema mismatch.
func (s *CSVStore) Load(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if stderrors.Is(err, os.ErrNotExist) || (err == nil && len(bytes.TrimPrefix(data, bom)) == 0) {
		return nil, classify(s.writeFile(nil), "create ledger")
	}
	if err != nil {
		return nil, classify(err, "read ledger")
	}

	records, err := readRecords(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeParsing, err, "parse ledger "+s.path)
	}
	if len(records) == 0 {
		return nil, classify(s.writeFile(nil), "create ledger")
	}

	switch width := len(records[0]); width {
	case len(models.LegacyHeader):
		return nil, s.migrate(data, records[1:])
	case len(models.Header) - 1, len(models.Header):
		var ids []string
		for _, rec := range records[1:] {
			if len(rec) > 0 && rec[0] != "" {
				ids = append(ids, rec[0])
			}
		}
		return ids, nil
	default:
		return nil, &errors.Error{
			Type:    errors.ErrorTypeSchemaMismatch,
			Message: fmt.Sprintf("ledger %s has %d columns, expected 3, 4 or 5", s.path, width),
		}
	}
}

// migrate keeps a byte-identical backup of the legacy file, then rewrites it
// with the current header and an empty ID in front of every row. A row too
// wide to fit the current layout leaves the file untouched.
func (s *CSVStore) migrate(original []byte, rows [][]string) error {
	for i, row := range rows {
		if len(row) > len(models.Header)-1 {
			return &errors.Error{
				Type:    errors.ErrorTypeSchemaMismatch,
				Message: fmt.Sprintf("legacy ledger %s row %d has %d fields, expected at most %d", s.path, i+2, len(row), len(models.Header)-1),
			}
		}
	}

	if err := os.WriteFile(s.BackupPath(), original, 0644); err != nil {
		return classify(err, "backup legacy ledger")
	}

	upgraded := make([][]string, 0, len(rows))
	for _, row := range rows {
		rec := make([]string, len(models.Header))
		copy(rec[1:], row)
		upgraded = append(upgraded, rec)
	}
	return classify(s.writeFile(upgraded), "migrate legacy ledger")
}

// writeFile replaces the ledger with a header and rows via a temp file.
func (s *CSVStore) writeFile(rows [][]string) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := writeCSV(tmp, true, append([][]string{models.Header}, rows...)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

// CheckWritable opens the ledger for appending and closes it again.
func (s *CSVStore) CheckWritable(ctx context.Context) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0)
	if stderrors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return classify(err, "ledger is not writable")
	}
	return classify(f.Close(), "ledger is not writable")
}

// Append writes one row and syncs it to disk before returning.
func (s *CSVStore) Append(ctx context.Context, row models.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return classify(err, "open ledger for append")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return classify(err, "stat ledger")
	}

	records := [][]string{row.Record()}
	if info.Size() == 0 {
		records = append([][]string{models.Header}, records...)
	}
	if err := writeCSV(f, info.Size() == 0, records); err != nil {
		f.Close()
		return classify(err, "append ledger row")
	}
	return classify(f.Close(), "close ledger")
}

func (s *CSVStore) Close() error { return nil }

func writeCSV(f *os.File, withBOM bool, records [][]string) error {
	if withBOM {
		if _, err := f.Write(bom); err != nil {
			return err
		}
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return f.Sync()
}

func readRecords(data []byte) ([][]string, error) {
	r := csv.NewReader(bufio.NewReader(bytes.NewReader(bytes.TrimPrefix(data, bom))))
	r.FieldsPerRecord = -1
	var out [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}
