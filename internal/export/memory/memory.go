// Package memory holds exported rows in memory, for tests and local runs
// without a real backup target.
package memory

import (
	"context"
	"sync"

	"checkin/internal/export"
)

type Exporter struct {
	mu   sync.Mutex
	rows []export.Row
}

var _ export.Exporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Append(ctx context.Context, rows []export.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows = append(e.rows, rows...)
	return nil
}

// Rows returns a copy of everything appended so far.
func (e *Exporter) Rows() []export.Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]export.Row, len(e.rows))
	copy(out, e.rows)
	return out
}
