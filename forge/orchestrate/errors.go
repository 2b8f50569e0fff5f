package orchestrate

import "fmt"

// DecisionParseError reports a decision-stage payload that came back with a
// success status but did not conform to the decision contract. Never retried.
type DecisionParseError struct {
	Reason string
	Raw    string // payload as received, after fence stripping
	Err    error
}

func (e *DecisionParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decision output rejected: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decision output rejected: %s", e.Reason)
}

func (e *DecisionParseError) Unwrap() error { return e.Err }

// GenerationError reports a failed generation-stage provider call. The run
// aborts without persisting a version.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("code generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
