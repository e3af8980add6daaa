package core

import (
	"fmt"
	"strconv"
	"strings"
)

// VectorLen is the fixed length of every set profile or query vector.
const VectorLen = 4

// Vector is a numeric profile used for expertise, needs, sociability and
// queries. A zero-length Vector means "unset" and is distinct from a vector
// of zeros.
type Vector []float64

// IsSet reports whether the vector carries a value.
func (v Vector) IsSet() bool { return len(v) > 0 }

// AllZero reports whether every component is zero. Unset vectors are all
// zero. Not named IsZero: yaml.v3 would then omit explicit zero vectors.
func (v Vector) AllZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Validate returns a *ValidationError if the vector is set but does not have
// exactly VectorLen components.
func (v Vector) Validate(field string) error {
	if !v.IsSet() || len(v) == VectorLen {
		return nil
	}
	return &ValidationError{
		Field:  field,
		Reason: fmt.Sprintf("expected %d components, got %d", VectorLen, len(v)),
	}
}

// Clone returns a copy that shares no memory with v. Unset stays unset.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// String renders the vector as "[a,b,c,d]"; unset renders as "[]".
func (v Vector) String() string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ParseVector parses a comma separated list such as "0.5,0,1,0.25".
// The result must contain exactly VectorLen components.
func ParseVector(s string) (Vector, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil, &ValidationError{Field: "query", Reason: "empty vector"}
	}
	tokens := strings.Split(s, ",")
	v := make(Vector, 0, len(tokens))
	for _, tok := range tokens {
		x, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
		if err != nil {
			return nil, &ValidationError{Field: "query", Reason: fmt.Sprintf("invalid component %q", tok), Err: err}
		}
		v = append(v, x)
	}
	if len(v) != VectorLen {
		return nil, v.Validate("query")
	}
	return v, nil
}
