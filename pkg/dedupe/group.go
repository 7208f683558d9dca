package dedupe

import "github.com/opencivic/roster/pkg/records"

// Group is one equivalence class produced by Deduplicate. Every input
// record belongs to exactly one group; singleton groups have no duplicates.
type Group struct {
	// Survivor is the record kept for this group. In merge mode it is the
	// group's fields merged into one record; otherwise it is the chosen
	// member unchanged.
	Survivor records.Record `json:"survivor"`
	// Duplicates are the discarded members, in input order.
	Duplicates []records.Record `json:"duplicates,omitempty"`
	// Strategy is the strategy that formed the group.
	Strategy Strategy `json:"strategy"`
	// Reason explains how the survivor was chosen.
	Reason string `json:"reason"`
}

// Size returns the number of records in the group, survivor included.
func (g Group) Size() int {
	return 1 + len(g.Duplicates)
}

// Report summarizes one Deduplicate invocation.
type Report struct {
	Strategy Strategy `json:"strategy"`
	Input    int      `json:"input"`
	Unique   int      `json:"unique"`
	Removed  int      `json:"removed"`
	Groups   int      `json:"duplicate_groups"`
}

// ReductionRate returns the share of input records removed, as a percentage.
func (r Report) ReductionRate() float64 {
	if r.Input == 0 {
		return 0
	}
	return float64(r.Removed) / float64(r.Input) * 100
}

// Summarize builds a report from Deduplicate output.
func Summarize(strategy Strategy, groups []Group) Report {
	rep := Report{Strategy: strategy}
	for _, g := range groups {
		rep.Input += g.Size()
		rep.Unique++
		rep.Removed += len(g.Duplicates)
		if g.Size() > 1 {
			rep.Groups++
		}
	}
	return rep
}
