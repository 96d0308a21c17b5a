package domain

import (
	"strconv"
	"strings"
)

// Coerce reads the leading number of a value as printed by the heat pump,
// e.g. "45.3°C", "1,2 bar" or "38 %". Unit suffixes are ignored and a comma
// is accepted as decimal separator. Anything without a leading number
// ("---", "Ein", "") yields ok == false.
func Coerce(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	end := 0
	if s[0] == '+' || s[0] == '-' {
		end = 1
	}
	digits := 0
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' {
			digits++
		} else if c != '.' && c != ',' {
			break
		}
		end++
	}
	if digits == 0 {
		return 0, false
	}

	num := normalizeDecimal(strings.TrimRight(s[:end], ".,"))
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CoerceOptional is Coerce for values that may be absent.
func CoerceOptional(raw *string) *float64 {
	if raw == nil {
		return nil
	}
	v, ok := Coerce(*raw)
	if !ok {
		return nil
	}
	return &v
}

// normalizeDecimal rewrites a numeric prefix to strconv syntax. When both
// separators are present the right-most one is the decimal point.
func normalizeDecimal(s string) string {
	dot := strings.LastIndexByte(s, '.')
	comma := strings.LastIndexByte(s, ',')

	switch {
	case comma < 0:
		return s
	case dot < 0:
		if strings.Count(s, ",") == 1 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case comma > dot:
		return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
	default:
		return strings.ReplaceAll(s, ",", "")
	}
}
