// Package sink defines the boundary contracts the buffering core consumes.
//
// The write-apply layer, the instant resolution call and the coordinator
// notification are external collaborators; this package only specifies
// what the sink requires from them.
package sink

import (
	"context"

	"github.com/lakeflow/tablesink/pkg/record"
)

// Applier durably writes one bucket's deduplicated records under an
// instant and returns per-batch write statuses.
//
// Retrying a whole flush under the same instant after a crash must not
// double-count; that idempotency is the applier's responsibility.
type Applier interface {
	// Apply writes records under the given instant.
	Apply(ctx context.Context, op record.Operation, instant string, records []record.Record) ([]record.WriteStatus, error)

	// Close releases applier resources.
	Close() error
}

// InstantResolver resolves the active instant, requesting a new one if
// needed. It returns "" only when no data is pending.
type InstantResolver interface {
	CurrentOrRequest(ctx context.Context, hasPending bool) (string, error)
}

// EventReceiver receives flush events on the coordinator side. Delivery
// and acknowledgement semantics belong to the coordinator.
type EventReceiver interface {
	OnFlushEvent(ev record.FlushEvent)
}
