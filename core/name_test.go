package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	var tests = []struct {
		input    string
		expected string
	}{
		{"david", "david"},
		{"  David ", "david"},
		{"Äpfel", "apfel"},
		{"crème-brûlée", "creme-brulee"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeName(tt.input), tt.input)
	}
}

func TestValidateName(t *testing.T) {
	var tests = []struct {
		name    string
		message string // empty if valid
	}{
		{"david", ""},
		{"a_b-c9", ""},
		{"", "Missing value"},
		{"x", "at least"},
		{strings.Repeat("x", 101), "maximum"},
		{"with space", "lowercase alphanumeric"},
		{"UPPER", "lowercase alphanumeric"},
	}
	for _, tt := range tests {
		var v validation
		validateName(&v, tt.name)
		err := v.err()
		if tt.message == "" {
			assert.NoError(t, err, tt.name)
			continue
		}
		if assert.Error(t, err, tt.name) {
			assert.Contains(t, err.(*ValidationError).Fields()["name"], tt.message)
		}
	}
}
