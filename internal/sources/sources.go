// Package sources defines the interfaces the pipeline uses to acquire
// records from upstream systems. Implementations live in the registry,
// detail, and places subpackages.
package sources

import (
	"context"

	"github.com/opencivic/roster/pkg/records"
)

// Registry streams the full business registry roll.
type Registry interface {
	// Tag identifies the source in merge priority decisions.
	Tag() records.SourceTag
	// Fetch returns every record in the roll, in upstream order.
	Fetch(ctx context.Context) ([]records.Record, error)
}

// Detail looks up authoritative per-business records by identifier.
type Detail interface {
	Tag() records.SourceTag
	// Fetch returns the detail record for one identifier.
	// Returns ErrNotFound when the identifier is unknown upstream.
	Fetch(ctx context.Context, id records.Identifier) (records.Record, error)
	// FetchBatch fetches many identifiers concurrently. Results are in
	// input order; identifiers that failed are reported in errs by index.
	FetchBatch(ctx context.Context, ids []records.Identifier) ([]records.Record, map[records.Identifier]error, error)
}

// Enricher augments a record with fields from an external lookup.
type Enricher interface {
	Tag() records.SourceTag
	// Enrich returns a copy of r with any additional fields found.
	// The second return reports whether a match was found.
	Enrich(ctx context.Context, r records.Record) (records.Record, bool, error)
}
