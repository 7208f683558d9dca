package output

import (
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/opencivic/roster/pkg/records"
)

// summaryColumns are the canonical fields shown by the default table
// view. Wide tables show every field present in the set.
var summaryColumns = []string{
	"taxpayer_id", "business_name", "street_address", "city", "state", "zip_code", "phone",
}

// RecordsToTableData flattens records into table rows. The default view
// shows the canonical summary columns; wide shows the union of all
// fields in first appearance order.
func RecordsToTableData(recs []records.Record, wide bool) Data {
	columns := summaryColumns
	if wide {
		columns = allColumns(recs)
	}

	caser := cases.Title(language.English)
	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = caser.String(strings.ReplaceAll(c, "_", " "))
	}

	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		row := make([]string, len(columns))
		for i, c := range columns {
			if v, ok := r.Get(c); ok && v != nil {
				row[i] = records.Stringify(v)
			}
		}
		rows = append(rows, row)
	}

	return Data{Headers: headers, Rows: rows}
}

// FormatRecords writes records to stdout in the requested format.
// Tables get the flattened view; JSON and YAML get the records as-is.
func FormatRecords(recs []records.Record, format Format) error {
	formatter := NewFormatter(format)

	var data any
	switch format {
	case FormatTable, "":
		data = RecordsToTableData(recs, false)
	case FormatWide:
		data = RecordsToTableData(recs, true)
	default:
		data = recs
	}

	return formatter.Format(os.Stdout, data)
}

// FormatAny writes any data structure to stdout in the requested format.
func FormatAny(data any, format Format) error {
	return NewFormatter(format).Format(os.Stdout, data)
}

func allColumns(recs []records.Record) []string {
	var names []string
	seen := make(map[string]bool)
	for _, r := range recs {
		for _, n := range r.Names() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}
