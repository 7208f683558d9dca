package reconcile

import (
	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/records"
)

// Option configures a Combine invocation.
type Option func(*options) error

type options struct {
	priority records.SourceTag
}

// WithPriority sets which source wins field conflicts during merging.
// Valid values are records.SourceRegistry and records.SourceDetail; the
// default is SourceDetail, matching the assumption that the per-entity
// detail API carries fresher data than the bulk registry roll.
func WithPriority(priority records.SourceTag) Option {
	return func(o *options) error {
		if priority != records.SourceRegistry && priority != records.SourceDetail {
			return errors.NewConfigError("combine", "invalid merge priority "+priority.String(), nil)
		}
		o.priority = priority
		return nil
	}
}

// Combine pairs records from the registry roll and the detail API by
// canonical identifier, merging each matched pair under the configured
// priority. Unmatched records from either side pass through unchanged.
//
// Output order is deterministic: registry records (merged or not) in their
// original order, followed by unconsumed detail records in their original
// order.
//
// If multiple detail records share an identifier, the last one encountered
// wins the index slot; earlier ones are never matched and pass through as
// detail-only. Callers that find this undesirable should deduplicate the
// detail collection first. Each detail record is consumed at most once, so
// a second registry record with the same identifier passes through as
// registry-only.
func Combine(registry, detail []records.Record, opts ...Option) ([]records.Record, Stats, error) {
	o := options{priority: records.SourceDetail}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, Stats{}, err
		}
	}

	reg := records.NormalizeAll(registry)
	det := records.NormalizeAll(detail)

	// Write-once identifier index over the detail side, built before any
	// lookup. Last write wins on duplicate identifiers.
	index := make(map[records.Identifier]int, len(det))
	for i, r := range det {
		if id, ok := records.ExtractIdentifier(r); ok {
			index[id] = i
		}
	}

	var stats Stats
	out := make([]records.Record, 0, len(reg)+len(det))
	consumed := make([]bool, len(det))

	for _, r := range reg {
		id, ok := records.ExtractIdentifier(r)
		if !ok {
			stats.NoIdentifierRegistry++
			stats.RegistryOnly++
			out = append(out, r)
			continue
		}

		j, found := index[id]
		if !found {
			stats.RegistryOnly++
			out = append(out, r)
			continue
		}

		merged, err := MergeMatched(r, det[j], o.priority)
		if err != nil {
			return nil, Stats{}, err
		}
		consumed[j] = true
		delete(index, id)
		stats.Matched++
		out = append(out, merged)
	}

	for j, r := range det {
		if consumed[j] {
			continue
		}
		if _, ok := records.ExtractIdentifier(r); !ok {
			stats.NoIdentifierDetail++
		}
		stats.DetailOnly++
		out = append(out, r)
	}

	stats.Output = len(out)
	return out, stats, nil
}
