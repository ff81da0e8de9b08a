// Package version compares the loosely formatted version strings that addon
// lists and manifests publish.
//
// Comparison is deliberately lenient: a leading "v" or "v." is ignored,
// missing segments count as zero, and a segment without leading digits
// counts as zero as well. "1.a.0" therefore equals "1.0.0".
package version

import (
	"errors"
	"strconv"
	"strings"
)

// Normalize trims whitespace and strips a single leading "v" or "v."
// (case-insensitive). An empty or blank input yields "".
func Normalize(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if v[0] == 'v' || v[0] == 'V' {
		v = v[1:]
		v = strings.TrimPrefix(v, ".")
	}
	return v
}

// Compare returns -1 if a < b, 1 if a > b and 0 otherwise.
// Empty input is treated as an all-zero version.
func Compare(a, b string) int {
	pa := segments(a)
	pb := segments(b)

	n := max(len(pa), len(pb))
	for i := 0; i < n; i++ {
		na := segmentAt(pa, i)
		nb := segmentAt(pb, i)
		if na > nb {
			return 1
		}
		if na < nb {
			return -1
		}
	}
	return 0
}

// Less reports whether a is an older version than b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

func segments(v string) []string {
	v = Normalize(v)
	if v == "" {
		return nil
	}
	return strings.Split(v, ".")
}

func segmentAt(parts []string, i int) int64 {
	if i >= len(parts) {
		return 0
	}
	return parseSegment(parts[i])
}

// parseSegment reads the leading decimal digits of s, so "3-beta" is 3 and
// "rc1" is 0.
func parseSegment(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0
	}
	// Out-of-range segments saturate at the int64 bounds, which ParseInt
	// returns alongside ErrRange.
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	return n
}
