// Package phone holds the locale-aware phone number rules used for booking
// confirmation and message delivery. A locale here is a dialing code ("91", "1"),
// not a UI language.
package phone

import "strings"

// Rule is the accepted national-number digit count for a locale, inclusive.
type Rule struct {
	Min int
	Max int
}

// Exact reports whether the rule accepts a single length.
func (r Rule) Exact() bool { return r.Min == r.Max }

func (r Rule) accepts(n int) bool { return n >= r.Min && n <= r.Max }

// Locale is one row of the supported locale table.
type Locale struct {
	Code   string
	Name   string
	Digits int
	Rule   Rule
}

// DefaultCode is the locale assumed when a caller has not chosen one.
const DefaultCode = "91"

// Generic applies to locale codes not in the table.
var Generic = Rule{Min: 7, Max: 15}

// defaultDisplayDigits is shown when a locale is unknown.
const defaultDisplayDigits = 10

var locales = []Locale{
	{Code: "91", Name: "India", Digits: 10, Rule: Rule{10, 10}},
	{Code: "1", Name: "USA/Canada", Digits: 10, Rule: Rule{10, 10}},
	{Code: "44", Name: "United Kingdom", Digits: 10, Rule: Rule{10, 10}},
	{Code: "971", Name: "UAE", Digits: 9, Rule: Rule{9, 9}},
	{Code: "966", Name: "Saudi Arabia", Digits: 9, Rule: Rule{9, 9}},
	{Code: "65", Name: "Singapore", Digits: 8, Rule: Rule{8, 8}},
	{Code: "60", Name: "Malaysia", Digits: 9, Rule: Rule{9, 10}},
	{Code: "61", Name: "Australia", Digits: 9, Rule: Rule{9, 9}},
	{Code: "64", Name: "New Zealand", Digits: 9, Rule: Rule{9, 9}},
	{Code: "27", Name: "South Africa", Digits: 9, Rule: Rule{9, 9}},
}

// Locales returns a copy of the supported locale table in display order.
func Locales() []Locale {
	return append([]Locale(nil), locales...)
}

// Lookup returns the table entry for code.
func Lookup(code string) (Locale, bool) {
	code = strings.TrimPrefix(strings.TrimSpace(code), "+")
	for _, l := range locales {
		if l.Code == code {
			return l, true
		}
	}
	return Locale{}, false
}

// RuleFor returns the digit rule for a locale; unknown codes get Generic.
func RuleFor(code string) Rule {
	if l, ok := Lookup(code); ok {
		return l.Rule
	}
	return Generic
}

// ExpectedDigitCount is the digit count shown to the user for a locale.
func ExpectedDigitCount(code string) int {
	if l, ok := Lookup(code); ok {
		return l.Digits
	}
	return defaultDisplayDigits
}

// Digits strips every non-digit rune.
func Digits(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// IsValid reports whether raw, after stripping non-digits, has an accepted length for the locale.
func IsValid(raw, code string) bool {
	return RuleFor(code).accepts(len(Digits(raw)))
}

// Normalize returns the digits of raw prefixed with the locale dialing code.
// If the digits already start with the prefix they are returned unchanged.
// defaultPrefix is used when code is empty.
func Normalize(raw, code, defaultPrefix string) string {
	prefix := Digits(code)
	if prefix == "" {
		prefix = Digits(defaultPrefix)
	}
	d := Digits(raw)
	if strings.HasPrefix(d, prefix) {
		return d
	}
	return prefix + d
}

// DisplayName returns the locale name, or "selected country" for unknown codes.
func DisplayName(code string) string {
	if l, ok := Lookup(code); ok {
		return l.Name
	}
	return "selected country"
}
