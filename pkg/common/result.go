package common

// Outcome is the control-flow decision a handler returns.
type Outcome int

const (
	// OutcomeStop means the handler finished without handing control on.
	// The pipeline ends for this message.
	OutcomeStop Outcome = iota

	// OutcomeNext advances to the following handler.
	OutcomeNext

	// OutcomeFail diverts into the error-recovery chain.
	OutcomeFail
)

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeStop:
		return "stop"
	case OutcomeNext:
		return "next"
	case OutcomeFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Result is returned by every handler in place of a continuation callback.
type Result struct {
	outcome Outcome
	err     error
}

// Next advances the pipeline to the following handler.
func Next() Result {
	return Result{outcome: OutcomeNext}
}

// Fail diverts the pipeline into the error-recovery chain with err.
// A nil err is a malformed continuation: the pipeline logs a warning and stops.
func Fail(err error) Result {
	return Result{outcome: OutcomeFail, err: err}
}

// Stop ends processing of the current message.
func Stop() Result {
	return Result{outcome: OutcomeStop}
}

// Outcome returns the control-flow decision.
func (r Result) Outcome() Outcome {
	return r.outcome
}

// Err returns the error carried by a Fail result.
func (r Result) Err() error {
	return r.err
}
