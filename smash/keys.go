package smash

import (
	"strings"
	"unicode"
)

// KeyFunc normalizes an external key that is not a registered alias. It is
// the per-schema customization point for key handling.
type KeyFunc func(key string) string

// StringKey is the default hook: keys are used as given.
func StringKey(key string) string {
	return key
}

// LowerCaseKey folds keys to lower case.
func LowerCaseKey(key string) string {
	return strings.ToLower(key)
}

// SnakeCaseKey maps "fullName", "FullName" and "full-name" to "full_name".
func SnakeCaseKey(key string) string {
	tokens := splitWords(key)
	for i, t := range tokens {
		tokens[i] = strings.ToLower(t)
	}
	return strings.Join(tokens, "_")
}

// CamelCaseKey maps "full_name" and "FullName" to "fullName".
func CamelCaseKey(key string) string {
	tokens := splitWords(key)
	var b strings.Builder
	for i, t := range tokens {
		t = strings.ToLower(t)
		if i > 0 {
			r := []rune(t)
			r[0] = unicode.ToUpper(r[0])
			t = string(r)
		}
		b.WriteString(t)
	}
	return b.String()
}

// NormalizedKey case-folds and strips separators so "Full_Name", "fullName"
// and "full-name" all become "fullname".
func NormalizedKey(key string) string {
	return strings.ToLower(strings.Join(splitWords(key), ""))
}

// ChainKeys applies hooks left to right.
func ChainKeys(fns ...KeyFunc) KeyFunc {
	return func(key string) string {
		for _, fn := range fns {
			key = fn(key)
		}
		return key
	}
}

// splitWords tokenizes on separators and case boundaries:
// "OrderID" -> [Order ID], "getHTTPResponse" -> [get HTTP Response].
func splitWords(s string) []string {
	var tokens []string
	var current []rune

	flush := func() {
		if len(current) > 0 {
			tokens = append(tokens, string(current))
			current = current[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if r == '_' || r == '-' || r == ' ' || r == '.' {
			flush()
			continue
		}
		if i > 0 && len(current) > 0 && startsWord(runes, i) {
			flush()
		}
		current = append(current, r)
	}
	flush()
	return tokens
}

func startsWord(runes []rune, i int) bool {
	prev, cur := runes[i-1], runes[i]
	if unicode.IsUpper(cur) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
		return true
	}
	// End of an acronym: "HTTPResponse" splits before "R".
	if unicode.IsUpper(cur) && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
		return true
	}
	return false
}
