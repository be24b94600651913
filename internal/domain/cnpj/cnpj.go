// Package cnpj normalizes and formats Brazilian business tax identifiers.
package cnpj

import (
	"errors"
	"strings"
)

const (
	// Length is the canonical digit count of a normalized CNPJ.
	Length = 14
	// minDigits is the shortest raw value accepted before zero-padding.
	// Spreadsheet exports routinely drop leading zeros, so anything with
	// at least 8 digits is recoverable.
	minDigits = 8
)

// ErrInvalidLength is returned when a raw value has too few or too many digits.
var ErrInvalidLength = errors.New("cnpj must contain between 8 and 14 digits")

// Normalize strips every non-digit character and zero-pads the result to 14
// digits. Values with fewer than 8 or more than 14 digits are rejected.
func Normalize(raw string) (string, error) {
	var b strings.Builder
	b.Grow(Length)
	for _, c := range raw {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	digits := b.String()
	if len(digits) < minDigits || len(digits) > Length {
		return "", ErrInvalidLength
	}
	if len(digits) < Length {
		digits = strings.Repeat("0", Length-len(digits)) + digits
	}
	return digits, nil
}

// Format renders a normalized CNPJ in the display form XX.XXX.XXX/XXXX-XX.
// Values that are not exactly 14 characters are returned unchanged.
func Format(normalized string) string {
	if len(normalized) != Length {
		return normalized
	}
	return normalized[0:2] + "." + normalized[2:5] + "." + normalized[5:8] +
		"/" + normalized[8:12] + "-" + normalized[12:14]
}
