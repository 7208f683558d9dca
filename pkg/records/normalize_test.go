package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFieldName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already canonical", "zip_code", "zip_code"},
		{"synonym zip", "zip", "zip_code"},
		{"synonym zipcode", "ZipCode", "zip_code"},
		{"synonym postal code", "Postal Code", "zip_code"},
		{"synonym taxpayer name", "Taxpayer Name", "business_name"},
		{"separator variants", "Street--Address", "street_address"},
		{"unknown passes through folded", "Obligation End Date", "obligation_end_date"},
		{"leading trailing separators", "  __weird field__ ", "weird_field"},
		{"mixed case unknown", "NAICSCode", "naicscode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFieldName(tt.input))
		})
	}
}

func TestNormalizeRecordCanonicalKeys(t *testing.T) {
	r := New(
		Field{"Taxpayer Name", "Acme Corp"},
		Field{"ZIP", "78701"},
		Field{"Phone Number", "5125550100"},
	)

	n := NormalizeRecord(r)
	assert.Equal(t, []string{"business_name", "zip_code", "phone"}, n.Names())
	assert.Equal(t, "Acme Corp", n.GetString("business_name"))

	// Original untouched.
	assert.True(t, r.Has("Taxpayer Name"))
}

func TestNormalizeRecordLastWriteWins(t *testing.T) {
	// Both keys normalize to zip_code; the later one wins.
	r := New(
		Field{"zip", "78701"},
		Field{"Postal Code", "78702"},
	)

	n := NormalizeRecord(r)
	assert.Equal(t, 1, n.Len())
	assert.Equal(t, "78702", n.GetString("zip_code"))
}

func TestNormalizeEmptyRecord(t *testing.T) {
	var r Record
	n := NormalizeRecord(r)
	assert.Equal(t, 0, n.Len())
}

func TestNormalizeAllPreservesOrder(t *testing.T) {
	in := []Record{
		New(Field{"Name", "A"}),
		New(Field{"Name", "B"}),
	}
	out := NormalizeAll(in)
	assert.Len(t, out, 2)
	assert.Equal(t, "A", out[0].GetString("business_name"))
	assert.Equal(t, "B", out[1].GetString("business_name"))
}
