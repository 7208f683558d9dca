package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTaxpayerID(t *testing.T) {
	assert.True(t, ValidTaxpayerID("12345678901"))
	assert.True(t, ValidTaxpayerID("123-456-789"))
	assert.True(t, ValidTaxpayerID(float64(123456789)))
	assert.False(t, ValidTaxpayerID("12345"))
	assert.False(t, ValidTaxpayerID("123456789012"))
	assert.False(t, ValidTaxpayerID(""))
	assert.False(t, ValidTaxpayerID(nil))
}

func TestCleanTaxpayerID(t *testing.T) {
	assert.Equal(t, "12345678901", CleanTaxpayerID("1-23.456 78901"))
	assert.Equal(t, "", CleanTaxpayerID("12"))
}

func TestZipHelpers(t *testing.T) {
	assert.True(t, ValidZip("78701"))
	assert.True(t, ValidZip("78701-1234"))
	assert.False(t, ValidZip("787"))

	assert.Equal(t, "78701", FormatZip("78701"))
	assert.Equal(t, "78701-1234", FormatZip("787011234"))
	assert.Equal(t, "78701", FormatZip("7870112"))
	assert.Equal(t, "", FormatZip("78"))
}

func TestPhoneHelpers(t *testing.T) {
	assert.True(t, ValidPhone("(512) 555-0100"))
	assert.False(t, ValidPhone("555-0100"))

	assert.Equal(t, "(512) 555-0100", FormatPhone("5125550100"))
	assert.Equal(t, "5550100", FormatPhone("555-0100"))
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("ops@example.com"))
	assert.False(t, ValidEmail("not-an-email"))
	assert.False(t, ValidEmail(""))
}
