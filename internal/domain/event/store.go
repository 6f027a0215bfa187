package event

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence contract consumed by the validator and composer.
// Lookups that match nothing return db.ErrNotFound; set lookups return only
// the rows that satisfy every filter and never fail for missing ids.
type Store interface {
	GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error)
	// FindEquipmentDetails returns details among ids whose equipment belongs
	// to departmentID.
	FindEquipmentDetails(ctx context.Context, ids []uuid.UUID, departmentID uuid.UUID, activeOnly bool) ([]EquipmentDetail, error)
	FindEquipment(ctx context.Context, ids []uuid.UUID, activeOnly, notDeleted bool) ([]Equipment, error)
	FindParameters(ctx context.Context, ids []uuid.UUID, activeOnly bool) ([]Parameter, error)
	GetEmployee(ctx context.Context, id uuid.UUID) (*Employee, error)

	// InTx runs fn in one transaction. Any error from fn rolls back every
	// write made through tx.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetEvent(ctx context.Context, id uuid.UUID) (*Event, error)
	ListEvents(ctx context.Context, departmentID *uuid.UUID, limit, offset int) ([]*Summary, int, error)
}

// Tx is the write side available inside Store.InTx.
type Tx interface {
	GetEmployee(ctx context.Context, id uuid.UUID) (*Employee, error)
	InsertEvent(ctx context.Context, e *Event) error
	InsertSchedule(ctx context.Context, eventID uuid.UUID, s *Schedule) error
	InsertEquipmentLink(ctx context.Context, eventID, equipmentDetailID uuid.UUID) error
	InsertParameterLink(ctx context.Context, eventID, parameterID uuid.UUID) error
}
