package utils

import (
	"regexp"
	"strings"
)

var nonDNSLabelRegex = regexp.MustCompile(`[^a-z0-9-]+`)

// NvlString returns first not empty string value from varargs
//
// return "" if all strings are empty
func NvlString(args ...string) string {
	for _, str := range args {
		if str != "" {
			return str
		}
	}
	return ""
}

// ShortenString returns the first N slice of a string.
func ShortenString(str string, n int) string {
	if len([]rune(str)) <= n {
		return str
	}
	return string([]rune(str)[:n])
}

// LastN returns the last N runes of a string.
func LastN(str string, n int) string {
	r := []rune(str)
	if len(r) <= n {
		return str
	}
	return string(r[len(r)-n:])
}

// JoinNonEmptyStrings joins strings with separator, but ignoring empty strings
func JoinNonEmptyStrings(sep string, elems ...string) string {
	var b strings.Builder
	for _, s := range elems {
		if len(s) > 0 {
			if b.Len() > 0 {
				b.WriteString(sep)
			}
			b.WriteString(s)
		}
	}
	return b.String()
}

// DNSLabel converts str to a valid RFC 1123 label: lower case alphanumerics and '-', at most maxLen characters,
// starting and ending with an alphanumeric character.
func DNSLabel(str string, maxLen int) string {
	s := nonDNSLabelRegex.ReplaceAllString(strings.ToLower(str), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}
	return s
}

// SplitNonEmpty splits comma separated list trimming spaces and dropping empty elements
func SplitNonEmpty(str string) []string {
	parts := strings.Split(str, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}
