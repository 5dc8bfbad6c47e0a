package core

// Reason is a symbolic code describing why an evaluation failed.
type Reason string

const (
	ReasonAccountAgeBelowCriteria    Reason = "account_age_below_criteria"
	ReasonBookingsCountBelowCriteria Reason = "bookings_count_below_criteria"
	ReasonDurationBelowCriteria      Reason = "duration_below_criteria"
)

// Outcome is the result of a rule evaluation: a payload plus the ordered
// list of failure reasons. An Outcome with no reasons is a success; there is
// no third state.
type Outcome[T any] struct {
	payload T
	reasons []Reason
}

// Success wraps payload in a passing outcome.
func Success[T any](payload T) Outcome[T] {
	return Outcome[T]{payload: payload}
}

// Failure wraps payload in a failing outcome carrying reasons in the order
// they were reported.
func Failure[T any](payload T, reasons ...Reason) Outcome[T] {
	return Outcome[T]{payload: payload, reasons: reasons}
}

func (o Outcome[T]) OK() bool {
	return len(o.reasons) == 0
}

func (o Outcome[T]) Failed() bool {
	return len(o.reasons) > 0
}

func (o Outcome[T]) Payload() T {
	return o.payload
}

// Reasons returns the failure codes in evaluation order. Empty on success.
func (o Outcome[T]) Reasons() []Reason {
	return o.reasons
}

// ReasonStrings returns the failure codes as plain strings, for transports
// and logs.
func (o Outcome[T]) ReasonStrings() []string {
	if len(o.reasons) == 0 {
		return nil
	}
	out := make([]string, len(o.reasons))
	for i, r := range o.reasons {
		out[i] = string(r)
	}
	return out
}
