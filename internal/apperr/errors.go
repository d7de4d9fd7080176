// Package apperr defines the error taxonomy shared by the note store, the
// index and the service layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrMalformedDocument = errors.New("malformed document")
	ErrMalformedHeader   = errors.New("malformed header")
	ErrIDCollision       = errors.New("id collision")
	ErrInvalidInput      = errors.New("invalid input")
	ErrPartialRelation   = errors.New("partial relation")
)

// PartialRelationError reports a relation whose forward edge was written but
// whose reverse edge was not.
type PartialRelationError struct {
	From, To, Type string
	// RolledBack is true when the forward edge was successfully reverted, so
	// the graph is symmetric again (without the new relation).
	RolledBack bool
	Err        error
}

func (e *PartialRelationError) Error() string {
	state := "graph left asymmetric"
	if e.RolledBack {
		state = "forward edge rolled back"
	}
	return fmt.Sprintf("partial relation %s -[%s]-> %s (%s): %v", e.From, e.Type, e.To, state, e.Err)
}

func (e *PartialRelationError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPartialRelation) match.
func (e *PartialRelationError) Is(target error) bool { return target == ErrPartialRelation }
