package records

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// digits strips everything but ASCII digits from a value's string form.
func digits(v any) string {
	var b strings.Builder
	for _, r := range Stringify(v) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidTaxpayerID reports whether a value looks like a state taxpayer
// number: 9 to 11 digits once separators are removed.
func ValidTaxpayerID(v any) bool {
	n := len(digits(v))
	return n >= 9 && n <= 11
}

// CleanTaxpayerID strips separators from a taxpayer number and returns the
// digit string, or "" if the result is not a plausible taxpayer number.
func CleanTaxpayerID(v any) string {
	d := digits(v)
	if len(d) >= 9 && len(d) <= 11 {
		return d
	}
	return ""
}

// ValidZip reports whether a value is a 5- or 9-digit US ZIP code.
func ValidZip(v any) bool {
	n := len(digits(v))
	return n == 5 || n == 9
}

// FormatZip normalizes a ZIP code to 5-digit or ZIP+4 form, or returns ""
// when the value has fewer than five digits.
func FormatZip(v any) string {
	d := digits(v)
	switch {
	case len(d) == 5:
		return d
	case len(d) == 9:
		return d[:5] + "-" + d[5:]
	case len(d) > 5:
		return d[:5]
	}
	return ""
}

// ValidPhone reports whether a value is a 10-digit US phone number.
func ValidPhone(v any) bool {
	return len(digits(v)) == 10
}

// FormatPhone formats a 10-digit phone number as (XXX) XXX-XXXX. Other
// digit counts are returned as the bare digit string.
func FormatPhone(v any) string {
	d := digits(v)
	if len(d) == 10 {
		return "(" + d[:3] + ") " + d[3:6] + "-" + d[6:]
	}
	return d
}

// ValidEmail reports whether a value looks like an email address.
func ValidEmail(v any) bool {
	s := strings.TrimSpace(Stringify(v))
	return s != "" && emailPattern.MatchString(s)
}
