package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"40.00", 4000},
		{"40", 4000},
		{"40.5", 4050},
		{"0.01", 1},
		{"0", 0},
		{"£40.00", 4000},
		{" 12.34 ", 1234},
		{"100000.00", 10000000},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "-1.00", "40.123", "40.", "4O.00", "1,000.00", "."} {
		_, err := Parse(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "£40.00", Format(4000))
	assert.Equal(t, "£0.05", Format(5))
	assert.Equal(t, "£1234.56", Format(123456))
	assert.Equal(t, "40.00", FormatPlain(4000))
}

func TestParseFormat_RoundTrip(t *testing.T) {
	for _, pence := range []int64{0, 1, 99, 100, 4999, 5000, 10000000} {
		got, err := Parse(FormatPlain(pence))
		require.NoError(t, err)
		assert.Equal(t, pence, got)
	}
}

func TestSplitVAT(t *testing.T) {
	// £120.00 gross at 20% -> £100.00 net + £20.00 VAT.
	net, vat := SplitVAT(12000, 2000)
	assert.Equal(t, int64(10000), net)
	assert.Equal(t, int64(2000), vat)

	// Net and VAT must always recompose to the gross exactly.
	for _, gross := range []int64{1, 2, 3, 99, 101, 4999, 123457} {
		net, vat := SplitVAT(gross, 2000)
		assert.Equal(t, gross, net+vat, "gross %d", gross)
		assert.GreaterOrEqual(t, net, int64(0))
		assert.GreaterOrEqual(t, vat, int64(0))
	}

	// Zero rate means no VAT portion.
	net, vat = SplitVAT(5000, 0)
	assert.Equal(t, int64(5000), net)
	assert.Zero(t, vat)
}
