package domain

import "strings"

// NormalizeHumanName trims leading/trailing whitespace and collapses internal whitespace runs.
// It is used for display name normalization.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeEmail trims whitespace and lower-cases the address; emails key identities.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
