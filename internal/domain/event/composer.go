package event

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicops/clinicops/internal/platform/db"
)

// ComposeInput carries everything the composer needs besides the selection.
// AssigneeID wins over DefaultAssignee; the default is resolved by the
// caller from the authenticated identity.
type ComposeInput struct {
	AssigneeID      *uuid.UUID
	DefaultAssignee *Employee
	Name            string
	Description     string
	Schedule        Schedule
}

// Composer materializes a validated selection as one Event with its
// schedule and link rows, all in a single transaction.
type Composer struct {
	store Store
}

func NewComposer(store Store) *Composer {
	return &Composer{store: store}
}

// Compose writes the event, schedule and links or nothing at all. It returns
// *NotFoundError for an unresolvable assignee and *CompositionError for any
// storage failure during the write.
func (c *Composer) Compose(ctx context.Context, sel *ValidatedSelection, in ComposeInput) (*Event, error) {
	if sel == nil {
		return nil, &CompositionError{Cause: errors.New("nil selection")}
	}
	if in.AssigneeID == nil && in.DefaultAssignee == nil {
		return nil, &NotFoundError{Entity: "employee"}
	}

	details := sel.EquipmentDetails()
	params := sel.Parameters()
	ev := &Event{
		ID:               uuid.New(),
		DepartmentID:     sel.Department().ID,
		Name:             in.Name,
		Description:      in.Description,
		Schedule:         in.Schedule,
		EquipmentDetails: details,
		Parameters:       params,
	}

	err := c.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		assignee := in.DefaultAssignee
		if in.AssigneeID != nil {
			emp, err := tx.GetEmployee(ctx, *in.AssigneeID)
			if err != nil {
				if errors.Is(err, db.ErrNotFound) {
					return &NotFoundError{Entity: "employee", ID: *in.AssigneeID}
				}
				return &CompositionError{Cause: err}
			}
			assignee = emp
		}
		ev.AssigneeID = assignee.ID
		ev.Assignee = assignee

		if err := tx.InsertEvent(ctx, ev); err != nil {
			return &CompositionError{Cause: err}
		}
		if err := tx.InsertSchedule(ctx, ev.ID, &ev.Schedule); err != nil {
			return &CompositionError{Cause: err}
		}
		for _, d := range details {
			if err := tx.InsertEquipmentLink(ctx, ev.ID, d.ID); err != nil {
				return &CompositionError{Cause: err}
			}
		}
		for _, p := range params {
			if err := tx.InsertParameterLink(ctx, ev.ID, p.ID); err != nil {
				return &CompositionError{Cause: err}
			}
		}
		return nil
	})
	if err != nil {
		var nf *NotFoundError
		var ce *CompositionError
		if errors.As(err, &nf) || errors.As(err, &ce) {
			return nil, err
		}
		return nil, &CompositionError{Cause: err}
	}
	return ev, nil
}
