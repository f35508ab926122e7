package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIPI(t *testing.T) {
	tests := []struct {
		input string
		want  string
		valid bool
	}{
		{input: "001-162-064683", want: "1162064683", valid: true},
		{input: "1162064683", want: "1162064683", valid: true},
		{input: "1162.064.683", want: "1162064683", valid: true},
		{input: " 1162 064 683 ", want: "1162064683", valid: true},
		{input: "12345678", want: "12345678", valid: true},
		{input: "00012345678", want: "12345678", valid: true},
		{input: "12345678901", want: "12345678901", valid: true},
		{input: "1234567", want: "1234567"},
		{input: "0001234567", want: "1234567"},
		{input: "123456789012", want: "123456789012"},
		{input: "1162A64683", want: "1162A64683"},
		{input: "000", want: ""},
		{input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeIPI(tt.input))
			assert.Equal(t, tt.valid, IsValidIPI(tt.input))
		})
	}
}

func TestNormalizeIPI_SeparatorsAndZerosCompareEqual(t *testing.T) {
	assert.Equal(t, NormalizeIPI("001-162-064683"), NormalizeIPI("1162064683"))
	assert.NotEqual(t, NormalizeIPI("1162064683"), NormalizeIPI("11620646830"))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "jane writer", NormalizeName("  Jane \t WRITER "))
	assert.Equal(t, "midnight drive", NormalizeTitle("Midnight   Drive"))
	assert.Empty(t, NormalizeName("   "))
}
