package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/roster/pkg/records"
)

func TestParseFormat(t *testing.T) {
	got, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, got)

	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONFormatter{Indent: "  "}
	require.NoError(t, f.Format(&buf, map[string]int{"count": 3}))

	var out map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 3, out["count"])
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := &YAMLFormatter{}
	require.NoError(t, f.Format(&buf, struct {
		Name string `yaml:"name"`
	}{Name: "Acme"}))
	assert.Contains(t, buf.String(), "name: Acme")
}

func TestTableFormatterStructSlice(t *testing.T) {
	type row struct {
		BusinessName string `json:"business_name"`
		City         string `json:"city"`
	}

	var buf bytes.Buffer
	f := &TableFormatter{}
	require.NoError(t, f.Format(&buf, []row{{"Acme", "Austin"}, {"Beta", "Dallas"}}))

	out := buf.String()
	// tablewriter renders headers uppercased.
	assert.Contains(t, strings.ToUpper(out), "BUSINESS NAME")
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "Dallas")
}

func TestTableFormatterFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}
	require.NoError(t, f.Format(&buf, map[string]string{"k": "v"}))
	assert.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"))
}

func TestRecordsToTableData(t *testing.T) {
	var r records.Record
	r.Set("taxpayer_id", "111")
	r.Set("business_name", "Acme")
	r.Set("obligation_end_date", "2024-12-31")

	data := RecordsToTableData([]records.Record{r}, false)
	assert.Equal(t, "Taxpayer Id", data.Headers[0])
	assert.Equal(t, "Business Name", data.Headers[1])
	require.Len(t, data.Rows, 1)
	assert.Equal(t, "111", data.Rows[0][0])

	wide := RecordsToTableData([]records.Record{r}, true)
	assert.Equal(t, []string{"Taxpayer Id", "Business Name", "Obligation End Date"}, wide.Headers)
}
