package domain

import (
	"strings"
)

// Conflict explains why a set of requirements cannot be satisfied.
type Conflict struct {
	// Specs is a minimal subset of the root specs that is already unsatisfiable.
	Specs []string
	// Records lists the identities of the records involved.
	Records []string
	// Lines are human readable problem statements.
	Lines []string
}

// String renders the conflict as an indented list.
func (c Conflict) String() string {
	var b strings.Builder
	b.WriteString("conflicting requirements: " + strings.Join(c.Specs, ", "))
	for _, line := range c.Lines {
		b.WriteString("\n  - " + line)
	}
	return b.String()
}

// UnsatisfiableError carries the conflict of a failed solve.
type UnsatisfiableError struct {
	Conflict Conflict
}

// Error implements error.
func (e *UnsatisfiableError) Error() string {
	return ErrUnsatisfiable.Error() + ": " + strings.Join(e.Conflict.Specs, ", ")
}

// Unwrap makes errors.Is(err, ErrUnsatisfiable) hold.
func (e *UnsatisfiableError) Unwrap() error {
	return ErrUnsatisfiable
}
