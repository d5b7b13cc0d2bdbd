package onboarding

// Kind classifies an Outcome.
type Kind int

const (
	Accepted Kind = iota
	// Rejected is a validation rejection: nothing changed, show Reason.
	Rejected
	// Failed is a generation or storage failure; Retryable says whether the
	// same step may be retried.
	Failed
)

func (k Kind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the typed result of a user-facing onboarding step.
type Outcome struct {
	Kind      Kind
	Reason    string
	Retryable bool
	// Err is the underlying cause, for errors.Is checks and logging.
	Err error
}

func Accept() Outcome { return Outcome{Kind: Accepted} }

func Reject(reason string, err error) Outcome {
	return Outcome{Kind: Rejected, Reason: reason, Err: err}
}

func Fail(reason string, retryable bool, err error) Outcome {
	return Outcome{Kind: Failed, Reason: reason, Retryable: retryable, Err: err}
}

// OK reports whether the step was accepted.
func (o Outcome) OK() bool { return o.Kind == Accepted }
