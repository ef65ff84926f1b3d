package ordersync

import (
	"context"
	"time"

	"github.com/ordersync/backend/internal/domain/order"
)

// ExportWriter is the spreadsheet sink. It receives exactly the rows to write
// and the column ordering, and returns where the file ended up.
type ExportWriter interface {
	Write(ctx context.Context, name string, columns []string, rows []order.FlatRow) (string, error)
}

// TaskPool runs n tasks under the storefront's concurrency limit. The
// returned errors are indexed by task number, whatever the completion order.
type TaskPool interface {
	Run(ctx context.Context, n int, task func(ctx context.Context, i int) error) []error
}

// Locker grants a run exclusive use of a storefront account for one pass
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}
