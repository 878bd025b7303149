package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrNodeNotFound indicates a node id does not resolve in the repository.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound indicates an edge id does not resolve in the repository.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrDanglingReference indicates an edge's source or target does not
	// resolve — violates the referential integrity invariant (spec.md §3).
	ErrDanglingReference = errors.New("edge references a non-existent node")
)

// ReferenceError wraps a dangling-edge failure with the offending ids.
type ReferenceError struct {
	EdgeID   string
	SourceID string
	TargetID string
	Missing  string // "source" or "target"
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("edge %s: %s %s does not resolve", e.EdgeID, e.Missing, e.idFor(e.Missing))
}

func (e *ReferenceError) idFor(which string) string {
	if which == "source" {
		return e.SourceID
	}
	return e.TargetID
}

func (e *ReferenceError) Unwrap() error { return ErrDanglingReference }
