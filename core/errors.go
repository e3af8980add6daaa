package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no live agent is registered under a name.
	ErrNotFound = errors.New("agent not found")
	// ErrTerminated is returned when a message is sent to a stopped agent.
	ErrTerminated = errors.New("agent terminated")
	// ErrNoDefaultAgent is wrapped by the ValidationError returned when a
	// graph does not contain a node named "default".
	ErrNoDefaultAgent = errors.New("there is no agent named default in the input graph")
	// ErrEmptyGraph is wrapped when the input document carries no nodes.
	ErrEmptyGraph = errors.New("input graph is empty")
)

// ValidationError reports malformed input: graph documents, missing default
// node, wrong-length vectors. It is never silently corrected.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	switch {
	case e.Field != "" && e.Reason != "":
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
	case e.Reason != "":
		return "validation error: " + e.Reason
	case e.Err != nil:
		return "validation error: " + e.Err.Error()
	default:
		return "validation error"
	}
}

func (e *ValidationError) Unwrap() error { return e.Err }

// MatcherFault reports a rule evaluation that failed. Callers treat it as a
// non-match at the point of failure.
type MatcherFault struct {
	Agent  string
	Target string
	Err    error
}

func (e *MatcherFault) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("matcher fault in %s evaluating %s: %v", e.Agent, e.Target, e.Err)
	}
	return fmt.Sprintf("matcher fault in %s: %v", e.Agent, e.Err)
}

func (e *MatcherFault) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
