// Package namematch compares the name on a credit card with the name on a
// driver's license. The result is advisory.
package namematch

import "strings"

const (
	HighThreshold    = 0.8
	PartialThreshold = 0.5
)

const (
	ReasonMissing = "both names are required"
	ReasonExact   = "exact match"
	ReasonHigh    = "high similarity between names"
	ReasonPartial = "partial match, manual review may be needed"
	ReasonNone    = "names do not appear to match"
)

type Result struct {
	IsValid    bool    `json:"isValid"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Message is the user-facing summary of a result.
func (r Result) Message() string {
	switch {
	case r.IsValid:
		return "Names match"
	case r.Confidence > PartialThreshold:
		return "Names partially match, please verify they refer to the same person"
	default:
		return "Names do not match, please ensure the credit card and driver's license belong to the same person"
	}
}

var punct = strings.NewReplacer(".", " ", ",", " ", "-", " ")

// Normalize lower-cases, replaces '.', ',' and '-' with spaces and collapses whitespace.
func Normalize(name string) string {
	return strings.Join(strings.Fields(punct.Replace(strings.ToLower(name))), " ")
}

// Parts returns the normalized name tokens longer than one character; initials are dropped.
func Parts(name string) []string {
	fields := strings.Fields(Normalize(name))
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

// Match scores how likely two names denote the same person.
func Match(a, b string) Result {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return Result{Reason: ReasonMissing}
	}
	if na == nb {
		return Result{IsValid: true, Confidence: 1.0, Reason: ReasonExact}
	}

	pa, pb := Parts(a), Parts(b)
	shorter, longer := pa, pb
	if len(pa) > len(pb) {
		shorter, longer = pb, pa
	}
	if len(shorter) == 0 {
		return Result{Reason: ReasonNone}
	}

	matched := 0
	for _, s := range shorter {
		for _, l := range longer {
			if strings.Contains(l, s) || strings.Contains(s, l) {
				matched++
				break
			}
		}
	}
	confidence := float64(matched) / float64(len(shorter))

	switch {
	case confidence >= HighThreshold:
		return Result{IsValid: true, Confidence: confidence, Reason: ReasonHigh}
	case confidence >= PartialThreshold:
		return Result{Confidence: confidence, Reason: ReasonPartial}
	default:
		return Result{Confidence: confidence, Reason: ReasonNone}
	}
}
