// Package csv writes check-in export rows to a local CSV file.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"checkin/internal/export"
)

const fileName = "checkins.csv"

var header = []string{"checkin_id", "user", "week_start", "question", "kind", "value"}

type Exporter struct {
	mu   sync.Mutex
	path string
}

var _ export.Exporter = (*Exporter)(nil)

// New creates a CSV exporter writing to dir/checkins.csv, creating the
// directory and the header row as needed.
func New(dir string) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &Exporter{path: filepath.Join(dir, fileName)}, nil
}

// Path returns the export file location.
func (e *Exporter) Path() string {
	return e.path
}

func (e *Exporter) Append(ctx context.Context, rows []export.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	writeHeader := false
	if _, err := os.Stat(e.path); os.IsNotExist(err) {
		writeHeader = true
	}

	f, err := os.OpenFile(e.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatInt(row.CheckInID, 10),
			row.UserName,
			row.WeekStart,
			row.Question,
			row.Kind,
			row.Value,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush export file: %w", err)
	}
	return nil
}
