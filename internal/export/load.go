package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"

	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/records"
)

// LoadJSON reads a JSON array of records, preserving field order.
func LoadJSON(path string) ([]records.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("read", path, err)
	}
	var recs []records.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, errors.NewParseError("json", path, "decoding records", err)
	}
	return recs, nil
}

// LoadCSV reads a CSV file with a header row into records. Empty cells
// produce empty string fields so column positions survive a round trip.
func LoadCSV(path string) ([]records.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	names, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewParseError("csv", path, "reading header", err)
	}

	var recs []records.Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewParseError("csv", path, "reading row", err)
		}

		var rec records.Record
		for i, name := range names {
			if i < len(row) {
				rec.Set(name, row[i])
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
