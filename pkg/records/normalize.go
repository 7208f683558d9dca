package records

import (
	"strings"
	"unicode"
)

// foldFieldName lowercases a field name and collapses every run of
// non-alphanumeric characters into a single underscore.
func foldFieldName(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingSep := false
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// NormalizeFieldName maps an arbitrary source field name to its canonical
// form: lowercase, separator runs collapsed to single underscores, then
// resolved through the synonym table. Names with no synonym entry pass
// through with separator normalization only.
func NormalizeFieldName(name string) string {
	folded := foldFieldName(name)
	if canonical, ok := canonicalNames[folded]; ok {
		return canonical
	}
	return folded
}

// NormalizeRecord applies NormalizeFieldName to every key, producing a new
// record with canonical keys. If two original keys normalize to the same
// canonical key, the later one by input order wins. An empty record
// normalizes to an empty record.
func NormalizeRecord(r Record) Record {
	var out Record
	for _, f := range r.Fields() {
		out.Set(NormalizeFieldName(f.Name), f.Value)
	}
	return out
}

// NormalizeAll normalizes every record in a collection, preserving order.
func NormalizeAll(recs []Record) []Record {
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = NormalizeRecord(r)
	}
	return out
}
