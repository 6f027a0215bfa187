package clinic

import (
	"context"

	"github.com/google/uuid"
)

type ClinicRepository interface {
	Create(ctx context.Context, c *Clinic) error
	GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	List(ctx context.Context, limit, offset int) ([]*Clinic, int, error)
}

type DepartmentRepository interface {
	Create(ctx context.Context, d *Department) error
	GetByID(ctx context.Context, id uuid.UUID) (*Department, error)
	ListByClinic(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Department, int, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}
