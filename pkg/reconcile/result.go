package reconcile

import "fmt"

// Stats summarizes one Combine invocation. Output always equals
// Matched + RegistryOnly + DetailOnly; records without identifiers are
// included in their side's "-only" count, not double counted.
type Stats struct {
	// Matched is the number of registry/detail pairs merged.
	Matched int `json:"matched"`
	// RegistryOnly is the number of registry records emitted unchanged.
	RegistryOnly int `json:"registry_only"`
	// DetailOnly is the number of detail records emitted unchanged.
	DetailOnly int `json:"detail_only"`
	// NoIdentifierRegistry counts registry records with no recognizable
	// identifier field. They are a subset of RegistryOnly.
	NoIdentifierRegistry int `json:"no_identifier_registry"`
	// NoIdentifierDetail counts detail records with no recognizable
	// identifier field. They are a subset of DetailOnly.
	NoIdentifierDetail int `json:"no_identifier_detail"`
	// Output is the total output collection size.
	Output int `json:"output"`
}

// MatchRate returns the share of output records built from both sources,
// as a percentage.
func (s Stats) MatchRate() float64 {
	if s.Output == 0 {
		return 0
	}
	return float64(s.Matched) / float64(s.Output) * 100
}

// String renders the stats for logs.
func (s Stats) String() string {
	return fmt.Sprintf("matched=%d registry_only=%d detail_only=%d no_id_registry=%d no_id_detail=%d output=%d",
		s.Matched, s.RegistryOnly, s.DetailOnly, s.NoIdentifierRegistry, s.NoIdentifierDetail, s.Output)
}
