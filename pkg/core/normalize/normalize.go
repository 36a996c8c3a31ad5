// Package normalize builds matching keys from free-text DART account names and
// account identifiers. Keys are only ever compared, never displayed.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// romanToken matches I..X as a standalone token. Longer alternatives come first.
var romanToken = regexp.MustCompile(`(?i)\b(?:viii|vii|iii|ix|iv|vi|ii|x|v|i)\b`)

// separators are turned into spaces before Roman numeral stripping so that
// "II.유동자산" still exposes "II" as a token.
func isSeparator(r rune) bool {
	switch r {
	case '(', ')', '[', ']', '{', '}',
		'·', '・', '‧', '∙', '•',
		',', '.', '-', '_', '/',
		'〈', '〉', '《', '》', '「', '」', '『', '』', '【', '】':
		return true
	}
	return false
}

// Name turns an account name into its matching key: NFKC, lowercase,
// separators and Roman numerals I..X removed, and everything that is not a
// letter or digit dropped. "자산 총계" and "자산총계" share a key.
func Name(raw string) string {
	if raw == "" {
		return ""
	}

	s := strings.ToLower(norm.NFKC.String(raw))
	s = strings.Map(func(r rune) rune {
		if isSeparator(r) {
			return ' '
		}
		return r
	}, s)
	s = romanToken.ReplaceAllString(s, " ")
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)

	return norm.NFKC.String(s)
}

// ID trims and lowercases an account identifier such as "ifrs-full_Assets".
func ID(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NamePtr is Name for nullable columns.
func NamePtr(raw *string) string {
	if raw == nil {
		return ""
	}
	return Name(*raw)
}

// IDPtr is ID for nullable columns.
func IDPtr(raw *string) string {
	if raw == nil {
		return ""
	}
	return ID(*raw)
}
