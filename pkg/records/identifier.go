package records

import (
	"strings"
	"time"
	"unicode"
)

// Identifier is a normalized registration/taxpayer number used as the join
// key across sources. Two records describing the same real-world entity
// yield the same Identifier after normalization.
type Identifier string

// String returns the string representation of the identifier.
func (id Identifier) String() string {
	return string(id)
}

// NormalizeIdentifier normalizes a raw identifier value: whitespace and
// punctuation are removed and letters uppercased, so "123-45 678" and
// "12345678" join. Leading zeros are preserved; registration numbers are
// opaque strings, not integers.
func NormalizeIdentifier(raw string) Identifier {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return Identifier(b.String())
}

// ExtractIdentifier scans a record's fields against the priority-ordered
// identifier alias list and returns the first non-empty match, normalized.
// The boolean is false when no alias matches or every match is empty.
// Non-string values are coerced to string before normalization.
func ExtractIdentifier(r Record) (Identifier, bool) {
	// Fold field names once so aliases match regardless of case or
	// separator style.
	folded := make(map[string]any, r.Len())
	for _, f := range r.Fields() {
		name := foldFieldName(f.Name)
		if _, seen := folded[name]; !seen {
			folded[name] = f.Value
		}
	}

	for _, alias := range identifierAliases {
		v, ok := folded[alias]
		if !ok || IsEmpty(v) {
			continue
		}
		id := NormalizeIdentifier(Stringify(v))
		if id != "" {
			return id, true
		}
	}
	return "", false
}

// timestampLayouts are the accepted layouts for recency tie-breaking,
// tried in order.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// Timestamp returns the most-recently-seen timestamp carried by the record,
// scanning the canonical timestamp fields in priority order. Unparseable or
// absent values are treated as no timestamp.
func Timestamp(r Record) (time.Time, bool) {
	for _, field := range timestampFields {
		v, ok := r.Get(field)
		if !ok || IsEmpty(v) {
			continue
		}
		raw := strings.TrimSpace(Stringify(v))
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
