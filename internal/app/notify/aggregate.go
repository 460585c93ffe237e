package notify

import "fmt"

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Aggregate is the folded result of SendAll.
type Aggregate struct {
	Sent     int
	Total    int
	Outcomes []Outcome
}

func (a Aggregate) Severity() Severity {
	switch {
	case a.Sent == a.Total:
		return SeveritySuccess
	case a.Sent > 0:
		return SeverityWarning
	default:
		return SeverityError
	}
}

func (a Aggregate) Message() string {
	switch a.Severity() {
	case SeveritySuccess:
		return "Booking confirmed! All WhatsApp notifications sent successfully."
	case SeverityWarning:
		return fmt.Sprintf("Booking confirmed, but could not send all notifications (%d/%d sent).", a.Sent, a.Total)
	default:
		return "Booking confirmed, but could not send any notification."
	}
}

// Errors returns the failed outcomes' errors in template order.
func (a Aggregate) Errors() []error {
	var out []error
	for _, o := range a.Outcomes {
		if o.Err != nil {
			out = append(out, o.Err)
		}
	}
	return out
}
