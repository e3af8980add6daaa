package core

import (
	"fmt"
	"slices"
)

// Status is the terminal (or pending) state of one outstanding query.
type Status int

const (
	// StatusPending means no outcome has been observed yet.
	StatusPending Status = iota
	// StatusAnswered means some reachable agent matched the query.
	StatusAnswered
	// StatusRefused is a definite "no".
	StatusRefused
	// StatusTimedOut means no outcome arrived before the deadline.
	StatusTimedOut
)

// String returns the lower-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAnswered:
		return "answered"
	case StatusRefused:
		return "refused"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for _, c := range []Status{StatusPending, StatusAnswered, StatusRefused, StatusTimedOut} {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", b)
}

// Query is an immutable request travelling through the network. Visited is a
// snapshot of agent names that must not be asked again along this path.
type Query struct {
	ID      string   `json:"id"`
	Vector  Vector   `json:"vector"`
	Visited []string `json:"visited,omitempty"`
}

// HasVisited reports whether name is part of the visited snapshot.
func (q Query) HasVisited(name string) bool {
	return slices.Contains(q.Visited, name)
}

// Forward returns a copy of q whose visited snapshot additionally contains
// names. The receiver is left untouched.
func (q Query) Forward(names ...string) Query {
	visited := make([]string, 0, len(q.Visited)+len(names))
	visited = append(visited, q.Visited...)
	for _, n := range names {
		if !slices.Contains(visited, n) {
			visited = append(visited, n)
		}
	}
	return Query{ID: q.ID, Vector: q.Vector, Visited: visited}
}

// Answer is the payload produced by the agent whose expertise matched.
// Path lists the agents the answer travelled through, starting with the
// agent that was asked first and ending with the matching agent.
type Answer struct {
	Agent     string   `json:"agent"`
	Expertise Vector   `json:"expertise"`
	Path      []string `json:"path"`
}

// Result is the outcome of one ask. QueryID is only filled in at the
// boundary and identifies the query in the journal.
type Result struct {
	QueryID string  `json:"query_id,omitempty"`
	Status  Status  `json:"status"`
	Answer  *Answer `json:"answer,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// Answered wraps an answer into a Result.
func Answered(a Answer) Result { return Result{Status: StatusAnswered, Answer: &a} }

// Refused builds a refusal carrying an optional reason.
func Refused(reason string) Result { return Result{Status: StatusRefused, Reason: reason} }

// TimedOut builds a timeout outcome.
func TimedOut(reason string) Result { return Result{Status: StatusTimedOut, Reason: reason} }

// IsAnswer reports whether the result carries an answer.
func (r Result) IsAnswer() bool { return r.Status == StatusAnswered && r.Answer != nil }
