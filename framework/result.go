package framework

import "fmt"

const (
	ExitOK      = 0
	ExitFailure = 1
)

// OutcomeReason says which row of the exit policy produced an Outcome.
type OutcomeReason string

const (
	ReasonCompleted      OutcomeReason = "completed"
	ReasonFailureLenient OutcomeReason = "failures tolerated"
	ReasonFailureStrict  OutcomeReason = "failures detected"
	ReasonTimeout        OutcomeReason = "timed out"
	ReasonError          OutcomeReason = "harness error"
	ReasonUsage          OutcomeReason = "usage error"
)

// Outcome is the final result of a run. The exit code is the only part of it that is
// visible to whoever invoked the process.
type Outcome struct {
	ExitCode int
	Reason   OutcomeReason
	Err      error
}

// NewOutcome applies the exit policy for a run that reached a terminal state: a detected
// failure is fatal only in strict mode.
func NewOutcome(strict, failed bool) Outcome {
	switch {
	case failed && strict:
		return Outcome{ExitCode: ExitFailure, Reason: ReasonFailureStrict}
	case failed:
		return Outcome{ExitCode: ExitOK, Reason: ReasonFailureLenient}
	default:
		return Outcome{ExitCode: ExitOK, Reason: ReasonCompleted}
	}
}

// TimeoutOutcome is the result of a run that never reached a terminal state. It is a
// failure in every mode.
func TimeoutOutcome(err error) Outcome {
	return Outcome{ExitCode: ExitFailure, Reason: ReasonTimeout, Err: err}
}

// ErrorOutcome is the result of a run that could not get as far as observing the page.
func ErrorOutcome(err error) Outcome {
	return Outcome{ExitCode: ExitFailure, Reason: ReasonError, Err: err}
}

// UsageOutcome is the result of a run whose command line was unusable.
func UsageOutcome(err error) Outcome {
	return Outcome{ExitCode: ExitFailure, Reason: ReasonUsage, Err: err}
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("exit %d (%s): %s", o.ExitCode, o.Reason, o.Err)
	}
	return fmt.Sprintf("exit %d (%s)", o.ExitCode, o.Reason)
}
