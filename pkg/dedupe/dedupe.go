// Package dedupe collapses duplicate business records after combination.
// Three strategies are available: identifier grouping on the canonical
// taxpayer identifier, exact grouping on a content signature, and fuzzy
// grouping on weighted field similarity.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/reconcile"
	"github.com/opencivic/roster/pkg/records"
)

// Strategy selects how records are grouped into duplicate clusters.
type Strategy string

const (
	// StrategyIdentifier groups records sharing a canonical identifier.
	StrategyIdentifier Strategy = "identifier"
	// StrategyExact groups records whose canonical field content is
	// byte-identical after normalization.
	StrategyExact Strategy = "exact"
	// StrategyFuzzy groups records whose key fields score above the
	// configured similarity threshold.
	StrategyFuzzy Strategy = "fuzzy"
)

// String returns the strategy name.
func (s Strategy) String() string {
	return string(s)
}

// ParseStrategy maps a name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(name))) {
	case StrategyIdentifier:
		return StrategyIdentifier, nil
	case StrategyExact:
		return StrategyExact, nil
	case StrategyFuzzy:
		return StrategyFuzzy, nil
	default:
		return "", &errors.ConfigError{
			Component: "dedupe",
			Message:   fmt.Sprintf("unknown strategy %q (want identifier, exact, or fuzzy)", name),
		}
	}
}

type options struct {
	merge     bool
	threshold float64
}

// Option configures deduplication.
type Option func(*options) error

// WithMerge makes each group emit a single record merged from all of its
// members instead of an untouched survivor.
func WithMerge(merge bool) Option {
	return func(o *options) error {
		o.merge = merge
		return nil
	}
}

// WithThreshold overrides the fuzzy similarity threshold.
func WithThreshold(threshold float64) Option {
	return func(o *options) error {
		if threshold <= 0 || threshold > 1 {
			return &errors.ConfigError{
				Component: "dedupe",
				Message:   fmt.Sprintf("threshold %v out of range (0, 1]", threshold),
			}
		}
		o.threshold = threshold
		return nil
	}
}

// Deduplicate partitions the input into duplicate groups under the given
// strategy and returns one output record per group alongside the groups
// themselves. Input records are never mutated. Output order follows the
// first occurrence of each group in the input.
func Deduplicate(input []records.Record, strategy Strategy, opts ...Option) ([]records.Record, []Group, error) {
	o := options{threshold: DefaultFuzzyThreshold}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, nil, err
		}
	}

	normalized := records.NormalizeAll(input)

	var clusters [][]int
	switch strategy {
	case StrategyIdentifier:
		clusters = groupByIdentifier(normalized)
	case StrategyExact:
		clusters = groupByDigest(normalized)
	case StrategyFuzzy:
		clusters = groupByFuzzy(normalized, o.threshold)
	default:
		return nil, nil, &errors.ConfigError{
			Component: "dedupe",
			Message:   fmt.Sprintf("unknown strategy %q", strategy),
		}
	}

	out := make([]records.Record, 0, len(clusters))
	groups := make([]Group, 0, len(clusters))

	for _, cluster := range clusters {
		g := buildGroup(input, normalized, cluster, strategy)
		if o.merge && len(cluster) > 1 {
			g.Survivor = mergeCluster(normalized, cluster, survivorIndex(normalized, cluster, strategy))
			g.Reason = "merged"
		}
		groups = append(groups, g)
		out = append(out, g.Survivor)
	}

	return out, groups, nil
}

// groupByIdentifier clusters records sharing a canonical identifier.
// Records lacking one are never considered duplicates of anything.
func groupByIdentifier(normalized []records.Record) [][]int {
	byID := make(map[records.Identifier]int)
	var clusters [][]int

	for i, r := range normalized {
		id, ok := records.ExtractIdentifier(r)
		if !ok {
			clusters = append(clusters, []int{i})
			continue
		}
		if ci, seen := byID[id]; seen {
			clusters[ci] = append(clusters[ci], i)
			continue
		}
		byID[id] = len(clusters)
		clusters = append(clusters, []int{i})
	}
	return clusters
}

// groupByDigest clusters records with identical canonical content.
func groupByDigest(normalized []records.Record) [][]int {
	byDigest := make(map[string]int)
	var clusters [][]int

	for i, r := range normalized {
		d := digest(r)
		if ci, seen := byDigest[d]; seen {
			clusters[ci] = append(clusters[ci], i)
			continue
		}
		byDigest[d] = len(clusters)
		clusters = append(clusters, []int{i})
	}
	return clusters
}

// digest produces a content signature independent of field order and
// value casing. Empty fields do not contribute.
func digest(r records.Record) string {
	parts := make([]string, 0, r.Len())
	for _, f := range r.Fields() {
		if records.IsEmpty(f.Value) {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(records.Stringify(f.Value)))
		parts = append(parts, f.Name+"="+v)
	}
	sort.Strings(parts)

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// groupByFuzzy clusters records by single linkage: a record joins every
// cluster holding a member that scores at or above the threshold, and
// clusters it bridges are merged. Clusters are therefore connected
// components of the similarity relation, so no two emitted survivors can
// themselves score above the threshold and rerunning the pass is a no-op.
func groupByFuzzy(normalized []records.Record, threshold float64) [][]int {
	var clusters [][]int

	for i, r := range normalized {
		var linked []int
		for ci, cluster := range clusters {
			for _, j := range cluster {
				if Confidence(normalized[j], r) >= threshold {
					linked = append(linked, ci)
					break
				}
			}
		}

		switch len(linked) {
		case 0:
			clusters = append(clusters, []int{i})
		case 1:
			clusters[linked[0]] = append(clusters[linked[0]], i)
		default:
			base := linked[0]
			for k := len(linked) - 1; k >= 1; k-- {
				ci := linked[k]
				clusters[base] = append(clusters[base], clusters[ci]...)
				clusters = append(clusters[:ci], clusters[ci+1:]...)
			}
			clusters[base] = append(clusters[base], i)
			sort.Ints(clusters[base])
		}
	}
	return clusters
}

// buildGroup selects the surviving original record for a cluster and
// records the rest as duplicates.
func buildGroup(input, normalized []records.Record, cluster []int, strategy Strategy) Group {
	si := survivorIndex(normalized, cluster, strategy)

	g := Group{
		Survivor: input[si],
		Strategy: strategy,
		Reason:   survivorReason(normalized, cluster, si, strategy),
	}
	for _, i := range cluster {
		if i != si {
			g.Duplicates = append(g.Duplicates, input[i])
		}
	}
	return g
}

// survivorIndex picks the cluster member to keep: most complete first,
// then most recently updated, then earliest input position. Exact
// duplicates carry identical content, so the first occurrence wins
// outright.
func survivorIndex(normalized []records.Record, cluster []int, strategy Strategy) int {
	if strategy == StrategyExact || len(cluster) == 1 {
		return cluster[0]
	}

	best := cluster[0]
	for _, i := range cluster[1:] {
		if better(normalized[i], normalized[best]) {
			best = i
		}
	}
	return best
}

// better reports whether candidate should replace current as survivor.
func better(candidate, current records.Record) bool {
	cc, kc := candidate.Completeness(), current.Completeness()
	if cc != kc {
		return cc > kc
	}

	ct, cok := records.Timestamp(candidate)
	kt, kok := records.Timestamp(current)
	if cok && kok {
		return ct.After(kt)
	}
	if cok != kok {
		return cok
	}
	return false
}

func survivorReason(normalized []records.Record, cluster []int, si int, strategy Strategy) string {
	if len(cluster) == 1 {
		return "unique"
	}
	if strategy == StrategyExact {
		return "first occurrence"
	}
	if si == cluster[0] {
		// Could be a genuine win or just absence of a better candidate.
		for _, i := range cluster[1:] {
			if normalized[i].Completeness() != normalized[si].Completeness() {
				return "most complete"
			}
		}
		return "first occurrence"
	}
	if _, ok := records.Timestamp(normalized[si]); ok {
		for _, i := range cluster {
			if i != si && normalized[i].Completeness() == normalized[si].Completeness() {
				return "most recent"
			}
		}
	}
	return "most complete"
}

// mergeCluster folds every cluster member into a single record, starting
// from the survivor so its values take precedence and its field order is
// preserved.
func mergeCluster(normalized []records.Record, cluster []int, si int) records.Record {
	merged := normalized[si].Clone()
	for _, i := range cluster {
		if i == si {
			continue
		}
		merged = reconcile.Merge(merged, normalized[i], records.SourceRegistry)
	}
	return merged
}
