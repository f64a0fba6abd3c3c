package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/irrflow/internal/domain"
)

// NDJSONSink implements domain.IrrSink and domain.IrrReader
// Each load writes one JSON record per line to a temp file, then renames it over the destination
type NDJSONSink struct {
	path string
}

// NewNDJSONSink creates a sink writing to path
func NewNDJSONSink(path string) *NDJSONSink {
	return &NDJSONSink{path: path}
}

// LoadIrrs replaces the destination file with the Irr records of all entities
func (s *NDJSONSink) LoadIrrs(ctx context.Context, entities map[domain.EntityName]*domain.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	irrs := domain.FlattenIrrs(entities)
	return writeAtomic(s.path, func(f *os.File) error {
		w := bufio.NewWriter(f)
		enc := json.NewEncoder(w)
		for _, irr := range irrs {
			if err := enc.Encode(irr.ToRecord()); err != nil {
				return fmt.Errorf("failed to encode irr: %w", err)
			}
		}
		return w.Flush()
	})
}

// GetIrrs reads the published records back; a missing file means nothing was published
func (s *NDJSONSink) GetIrrs(ctx context.Context) ([]domain.Irr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.Irr{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open irr file: %w", err)
	}
	defer f.Close()

	irrs := []domain.Irr{}
	dec := json.NewDecoder(f)
	for dec.More() {
		var rec domain.IrrRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode irr record: %w", err)
		}

		var date *time.Time
		if rec.Date != "" {
			d, err := time.Parse(domain.IrrDateLayout, rec.Date)
			if err != nil {
				return nil, fmt.Errorf("invalid irr date %q: %w", rec.Date, err)
			}
			date = &d
		}
		irrs = append(irrs, domain.NewIrr(date, decimal.NewFromFloat(rec.IrrMonthly), domain.EntityName(rec.EntityName)))
	}
	return irrs, nil
}

// writeAtomic writes through a temp file in the destination directory and renames it into place
func writeAtomic(path string, write func(f *os.File) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to publish %s: %w", path, err)
	}
	return nil
}
