// Package reconcile pairs business records across heterogeneous sources by
// canonical identifier and merges them under a source-priority conflict
// policy. It is pure computation over in-memory collections with no I/O,
// logging, or retries; those concerns belong to the surrounding
// collaborators.
package reconcile

import (
	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/records"
)

// Merge combines a registry record and a detail record describing the same
// entity into one merged record.
//
// The result is the union of both records' fields, primary-record order
// first, then detail-only fields in their own order. For a field present in
// both records the value from the priority source wins unless it is empty,
// in which case the other source's non-empty value is used; priority
// applies only among non-empty candidates. If both values are empty the
// field is set to null.
//
// priority names which input wins conflicts: SourceRegistry for the primary
// argument, anything else (conventionally SourceDetail) for the detail
// argument. Merge is a pure function; it assumes its caller already matched
// the records by identifier; MergeMatched is the checked variant.
func Merge(primary, detail records.Record, priority records.SourceTag) records.Record {
	var out records.Record

	for _, f := range primary.Fields() {
		dv, inDetail := detail.Get(f.Name)
		if !inDetail {
			out.Set(f.Name, f.Value)
			continue
		}
		out.Set(f.Name, resolve(f.Value, dv, priority))
	}

	for _, f := range detail.Fields() {
		if !primary.Has(f.Name) {
			out.Set(f.Name, f.Value)
		}
	}

	return out
}

// resolve picks the winning value for a field present in both inputs.
func resolve(primaryVal, detailVal any, priority records.SourceTag) any {
	winner, loser := detailVal, primaryVal
	if priority == records.SourceRegistry {
		winner, loser = primaryVal, detailVal
	}

	switch {
	case !records.IsEmpty(winner):
		return winner
	case !records.IsEmpty(loser):
		return loser
	default:
		return nil
	}
}

// MergeMatched merges two records that the caller claims share a canonical
// identifier, verifying the claim first. A mismatch is a caller bug, not a
// data condition: it is reported as a contract error. The combiner is the
// only intended caller.
func MergeMatched(primary, detail records.Record, priority records.SourceTag) (records.Record, error) {
	pid, pok := records.ExtractIdentifier(primary)
	did, dok := records.ExtractIdentifier(detail)
	if pok && dok && pid != did {
		return records.Record{}, &errors.IdentifierMismatchError{
			Primary: pid.String(),
			Detail:  did.String(),
		}
	}
	return Merge(primary, detail, priority), nil
}
