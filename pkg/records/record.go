// Package records defines the record data model shared by every pipeline
// stage, along with field-name normalization, canonical identifier
// extraction, and value validation helpers.
//
// A Record is an ordered mapping from field name to value as seen from one
// data source at one point in time. Records are never mutated in place by
// the pipeline core; normalization and merging always produce new records.
package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Field is a single named value within a record.
type Field struct {
	Name  string
	Value any
}

// Record is an ordered field mapping describing one business entity.
// The zero value is an empty record ready for use.
type Record struct {
	fields []Field
	index  map[string]int
}

// New creates a record from fields in order. Later duplicates of a name
// overwrite the earlier value in place.
func New(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.fields)
}

// Get returns the value for a field name and whether the field is present.
func (r Record) Get(name string) (any, bool) {
	if r.index == nil {
		return nil, false
	}
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.fields[i].Value, true
}

// GetString returns the stringified value for a field name, or "" if
// the field is absent or null.
func (r Record) GetString(name string) string {
	v, ok := r.Get(name)
	if !ok {
		return ""
	}
	return Stringify(v)
}

// Has reports whether the record contains the field.
func (r Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Set stores a value under a field name. An existing field keeps its
// position; a new field is appended. Set copies the record's storage
// before writing, so records sharing storage through a value copy never
// observe each other's writes.
func (r *Record) Set(name string, value any) {
	fields := make([]Field, len(r.fields), len(r.fields)+1)
	copy(fields, r.fields)
	index := make(map[string]int, len(r.index)+1)
	for k, i := range r.index {
		index[k] = i
	}
	r.fields, r.index = fields, index

	if i, ok := r.index[name]; ok {
		r.fields[i].Value = value
		return
	}
	r.index[name] = len(r.fields)
	r.fields = append(r.fields, Field{Name: name, Value: value})
}

// Names returns the field names in record order.
func (r Record) Names() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
	}
	return names
}

// Fields returns a copy of the fields in record order.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := Record{
		fields: make([]Field, len(r.fields)),
		index:  make(map[string]int, len(r.fields)),
	}
	copy(out.fields, r.fields)
	for k, v := range r.index {
		out.index[k] = v
	}
	return out
}

// Completeness returns the number of non-empty fields. It is used as the
// survivor tie-breaker when collapsing duplicate groups.
func (r Record) Completeness() int {
	score := 0
	for _, f := range r.fields {
		if !IsEmpty(f.Value) {
			score++
		}
	}
	return score
}

// Equal reports whether two records have the same fields, values, and order.
func (r Record) Equal(other Record) bool {
	if len(r.fields) != len(other.fields) {
		return false
	}
	for i, f := range r.fields {
		o := other.fields[i]
		if f.Name != o.Name || Stringify(f.Value) != Stringify(o.Value) {
			return false
		}
	}
	return true
}

// String renders the record as compact JSON for logging and debugging.
func (r Record) String() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("record(%d fields)", len(r.fields))
	}
	return string(b)
}

// MarshalJSON encodes the record as a JSON object preserving field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving the order keys appear in
// the input. Upstream APIs are loose about field naming, so order matters
// for the documented last-write-wins normalization policy.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record: expected JSON object, got %v", tok)
	}

	*r = Record{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("record: expected object key, got %v", keyTok)
		}

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		r.Set(key, convertJSONValue(raw))
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// convertJSONValue converts json.Number values to float64 and leaves
// everything else as decoded. Nested objects and arrays are kept verbatim;
// Stringify renders them back to JSON when a flat string is needed.
func convertJSONValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = convertJSONValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = convertJSONValue(inner)
		}
		return out
	default:
		return v
	}
}

// IsEmpty reports whether a value counts as empty for merge and
// completeness purposes: nil, or a string that is empty or whitespace-only.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// Stringify coerces a value to its canonical string form. Numbers are
// rendered without a trailing fractional part when they are integral, so an
// identifier decoded as JSON number round-trips cleanly.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// SourceTag labels which upstream a record was ingested from. It is set at
// ingest time and drives conflict-resolution priority when merging; it is
// never recomputed.
type SourceTag string

// Known record sources.
const (
	// SourceRegistry is the open-data business registration roll.
	SourceRegistry SourceTag = "registry"
	// SourceDetail is the per-entity detail API.
	SourceDetail SourceTag = "detail"
	// SourcePlaces is the third-party places enrichment API.
	SourcePlaces SourceTag = "places"
)

// String returns the string representation of a source tag.
func (s SourceTag) String() string {
	return string(s)
}

// IsValid reports whether the tag is one of the known sources.
func (s SourceTag) IsValid() bool {
	switch s {
	case SourceRegistry, SourceDetail, SourcePlaces:
		return true
	}
	return false
}
