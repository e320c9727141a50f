package local

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// LockName is the advisory lock file CSVFile.Store holds in the target directory.
const LockName = ".csvstore.lock"

// CSVFile persists rows as a comma-delimited file with a fixed header.
//
// Store overwrites any existing file at Path. The write holds an exclusive advisory
// lock on LockName in Path's directory so two runs cannot interleave rows.
type CSVFile[T any] struct {
	Path   string
	Header []string
	Encode func(T) []string
}

// Store implements core.OutputAdapter.
func (f CSVFile[T]) Store(ctx context.Context, rows []T) error {
	if strings.TrimSpace(f.Path) == "" {
		return errors.New("csv file path is required")
	}
	if err := f.validate(); err != nil {
		return err
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, LockName))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", f.Path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", f.Path)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	out, err := os.Create(f.Path)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	if err := f.Write(out, rows); err != nil {
		return err
	}
	return out.Close()
}

// Write encodes the header and rows to w. Store uses it for the file body.
func (f CSVFile[T]) Write(w io.Writer, rows []T) error {
	if err := f.validate(); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := f.Encode(r)
		if len(rec) != len(f.Header) {
			return fmt.Errorf("row has %d columns, want %d", len(rec), len(f.Header))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (f CSVFile[T]) validate() error {
	if len(f.Header) == 0 {
		return errors.New("csv header is required")
	}
	if f.Encode == nil {
		return errors.New("csv row encoder is required")
	}
	return nil
}

// ReadRecords reads a CSV stream and returns its header row and data rows.
// Rows may be ragged; callers map columns by header name.
func ReadRecords(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row: %w", err)
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

// ListFiles returns the names (not paths) of regular files in dir ending in suffix, sorted.
// A missing dir yields an empty list.
func ListFiles(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if strings.HasSuffix(e.Name(), suffix) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
