// Package accounting folds the dispatcher's success signals into the
// per-processor totals served by the summary endpoint.
package accounting

import (
	"context"
	"time"

	"payment-gateway/internal/entities"
)

// Ledger records acknowledged dispatches. Only payments a processor
// acknowledged are ever recorded. A zero from or to leaves that side of
// the summary range open.
type Ledger interface {
	Record(ctx context.Context, d entities.Dispatch) error
	Summary(ctx context.Context, from, to time.Time) (*entities.PaymentsSummary, error)
	Clear(ctx context.Context) error
}
