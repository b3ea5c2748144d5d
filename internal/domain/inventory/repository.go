package inventory

import (
	"context"
)

// Journal is the append-only store of ledger entries.
//
// The ledger appends an event's entries before its in-memory counters change,
// so a failed Append leaves no trace of the event. Append must store all
// entries of one call or none of them.
type Journal interface {
	// Append stores entries atomically
	Append(ctx context.Context, entries []LedgerEntry) error

	// LoadAll returns every entry ordered by sequence
	LoadAll(ctx context.Context) ([]LedgerEntry, error)
}

// SnapshotRepository stores the marketplace stock snapshots the ledger
// reconciles against
type SnapshotRepository interface {
	// Save stores a snapshot together with its drift observation, if any
	Save(ctx context.Context, snapshot AfnSnapshot, drift *DriftObservation) error

	// LatestPerSku returns the most recent snapshot of every SKU and warehouse
	LatestPerSku(ctx context.Context) ([]AfnSnapshot, error)
}
