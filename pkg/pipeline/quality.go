package pipeline

import "github.com/opencivic/roster/pkg/records"

// FieldStat is the fill rate of one field across a record set.
type FieldStat struct {
	Name   string  `json:"name"`
	Filled int     `json:"filled"`
	Rate   float64 `json:"rate"`
}

// QualityReport summarizes how complete and well-formed the output
// records are.
type QualityReport struct {
	Total      int              `json:"total"`
	Fields     []FieldStat      `json:"fields"`
	Validation []ValidationStat `json:"validation,omitempty"`
}

// ValidationStat counts how many filled values of a field pass its
// format check.
type ValidationStat struct {
	Name    string `json:"name"`
	Checked int    `json:"checked"`
	Valid   int    `json:"valid"`
	Invalid int    `json:"invalid"`
}

// validators maps fields with a known format to their checks. Only
// filled values are counted against them.
var validators = []struct {
	field string
	valid func(any) bool
}{
	{"taxpayer_id", records.ValidTaxpayerID},
	{"zip_code", records.ValidZip},
	{"phone", records.ValidPhone},
	{"email", records.ValidEmail},
}

// ValidateFields checks filled values of format-bearing fields and
// reports pass and fail counts per field. Fields absent from every
// record are omitted.
func ValidateFields(recs []records.Record) []ValidationStat {
	var stats []ValidationStat
	for _, v := range validators {
		stat := ValidationStat{Name: v.field}
		for _, r := range recs {
			val, ok := r.Get(v.field)
			if !ok || records.IsEmpty(val) {
				continue
			}
			stat.Checked++
			if v.valid(val) {
				stat.Valid++
			} else {
				stat.Invalid++
			}
		}
		if stat.Checked > 0 {
			stats = append(stats, stat)
		}
	}
	return stats
}

// FieldCoverage computes per-field fill rates over the record set.
// Fields are reported in first appearance order.
func FieldCoverage(recs []records.Record) QualityReport {
	report := QualityReport{Total: len(recs)}
	if len(recs) == 0 {
		return report
	}

	index := make(map[string]int)
	for _, r := range recs {
		for _, f := range r.Fields() {
			i, ok := index[f.Name]
			if !ok {
				i = len(report.Fields)
				index[f.Name] = i
				report.Fields = append(report.Fields, FieldStat{Name: f.Name})
			}
			if !records.IsEmpty(f.Value) {
				report.Fields[i].Filled++
			}
		}
	}

	for i := range report.Fields {
		report.Fields[i].Rate = float64(report.Fields[i].Filled) / float64(len(recs)) * 100
	}
	return report
}
