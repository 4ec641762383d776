package release

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// versionRegex matches dotted versions such as 1.7.2, 2024.08.06 or 6.1.
var versionRegex = regexp.MustCompile(`\d+(?:\.\d+){1,3}`)

// ExtractVersion extracts the first dotted version from command output.
func ExtractVersion(output string) (string, error) {
	match := versionRegex.FindString(output)
	if match == "" {
		return "", fmt.Errorf("no version found in output")
	}
	return match, nil
}

// IsNewer reports whether candidate is strictly newer than current.
//
// A leading "v" is ignored, components are split on "." and "-", each
// component is compared by its leading digits, and missing components count
// as zero, so "1.2" and "1.2.0" are equal.
func IsNewer(candidate, current string) bool {
	a := versionParts(candidate)
	b := versionParts(current)
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			return x > y
		}
	}
	return false
}

func versionParts(v string) []int {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(strings.TrimPrefix(v, "v"), "V")
	if v == "" {
		return nil
	}
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == '.' || r == '-' })
	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, leadingInt(f))
	}
	return parts
}

func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
