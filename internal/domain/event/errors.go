package event

import (
	"fmt"

	"github.com/google/uuid"
)

// Selection kinds reported by SelectionError.
const (
	KindEquipmentDetails = "equipment_details"
	KindParameters       = "parameters"
)

// NotFoundError reports a department, employee or event id that did not
// resolve. ID is uuid.Nil when no id was supplied.
type NotFoundError struct {
	Entity string
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string {
	if e.ID == uuid.Nil {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// SelectionError reports requested ids that failed scope or activity checks.
// Rejected is sorted.
type SelectionError struct {
	Kind     string
	Rejected []uuid.UUID
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("invalid %s selection: %d id(s) rejected", e.Kind, len(e.Rejected))
}

// CompositionError wraps a storage failure during the atomic write. No rows
// from the failed composition persist.
type CompositionError struct {
	Cause error
}

func (e *CompositionError) Error() string {
	return "compose event: " + e.Cause.Error()
}

func (e *CompositionError) Unwrap() error { return e.Cause }
