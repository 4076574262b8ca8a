package core

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MinNameLength = 2
	MaxNameLength = 100
)

var nameRegex = regexp.MustCompile(`^[a-z0-9_-]+$`)

// NormalizeName lowercases and trims the name and removes diacritics, so "Äpfel" becomes "apfel".
// It does not remove other invalid characters, validation must reject them.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	// transform.Chain is stateful, so we create a new one each time
	var t = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if result, _, err := transform.String(t, name); err == nil {
		name = result
	}
	return name
}

func validateName(v *validation, name string) {
	switch {
	case name == "":
		v.add("name", "Missing value")
	case len(name) < MinNameLength:
		v.add("name", "Name must be at least %d characters long", MinNameLength)
	case len(name) > MaxNameLength:
		v.add("name", "Name must be a maximum of %d characters long", MaxNameLength)
	case !nameRegex.MatchString(name):
		v.add("name", "Url must be purely lowercase alphanumeric (ascii) characters and these symbols: -_")
	}
}
