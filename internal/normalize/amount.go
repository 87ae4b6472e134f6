// Package normalize turns the uneven values found in third-party statement
// exports into canonical numeric and string forms. Parsing is deliberately
// lenient: a malformed amount degrades to 0 instead of aborting a run.
package normalize

import (
	"strconv"
	"strings"
)

// ParseAmount converts a locale-formatted amount string to a float64.
//
// It accepts values that are already plain numbers, pt/european formatting
// ("2.507,55", "2 507,55") and the inverse en formatting ("2,507.55"). A
// leading sign is preserved. Null, empty or unparsable input yields 0.
func ParseAmount(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	sign := 1.0
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0
	}

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Both separators present: the rightmost one is the decimal mark.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			// Multiple commas can only be thousands separators.
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		} else if isThousandsDot(s, lastDot) {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return sign * v
}

// isThousandsDot reports whether a single dot looks like a thousands separator
// rather than a decimal mark: exactly three digits follow it and at least four
// digits make up the number ("2.507" -> 2507, but "0.507" stays 0.507).
func isThousandsDot(s string, pos int) bool {
	if len(s)-pos-1 != 3 {
		return false
	}
	return pos > 1 || (pos == 1 && s[0] != '0')
}
