package records

import (
	_ "embed"
	"fmt"

	"github.com/goccy/go-yaml"
)

//go:embed schema.yaml
var schemaYAML []byte

// schema is the canonical field schema loaded from the embedded YAML.
type schema struct {
	Synonyms          map[string][]string `yaml:"synonyms"`
	IdentifierAliases []string            `yaml:"identifier_aliases"`
	TimestampFields   []string            `yaml:"timestamp_fields"`
}

var (
	// canonicalNames maps a separator-normalized variant to its canonical
	// field name. Built once from the embedded schema.
	canonicalNames map[string]string

	// identifierAliases is the priority-ordered alias list for canonical
	// identifier extraction.
	identifierAliases []string

	// timestampFields is the priority-ordered list of canonical timestamp
	// field names used for recency tie-breaking.
	timestampFields []string
)

func init() {
	var s schema
	if err := yaml.Unmarshal(schemaYAML, &s); err != nil {
		panic(fmt.Sprintf("records: invalid embedded schema: %v", err))
	}

	canonicalNames = make(map[string]string)
	for canonical, variants := range s.Synonyms {
		for _, variant := range variants {
			canonicalNames[foldFieldName(variant)] = canonical
		}
		// A canonical name always maps to itself.
		canonicalNames[foldFieldName(canonical)] = canonical
	}

	identifierAliases = s.IdentifierAliases
	timestampFields = s.TimestampFields
}

// IdentifierAliases returns the priority-ordered identifier alias list.
func IdentifierAliases() []string {
	out := make([]string, len(identifierAliases))
	copy(out, identifierAliases)
	return out
}

// TimestampFields returns the priority-ordered timestamp field list.
func TimestampFields() []string {
	out := make([]string, len(timestampFields))
	copy(out, timestampFields)
	return out
}
