// Package export defines the outbound port for mirroring recorded
// check-ins to an external backup target (spreadsheet or local CSV).
package export

import "context"

// Row is one exported line: a single answer with its context resolved.
type Row struct {
	CheckInID int64
	UserName  string
	WeekStart string
	Question  string
	Kind      string
	Value     string
}

// Exporter appends rows to the backup target. Implementations must be
// safe for use from a single worker goroutine; idempotency is not
// required (duplicate rows in a backup are acceptable).
type Exporter interface {
	Append(ctx context.Context, rows []Row) error
}
