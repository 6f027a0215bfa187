package equipment

import (
	"context"

	"github.com/google/uuid"
)

type EquipmentRepository interface {
	Create(ctx context.Context, eq *Equipment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Equipment, error)
	ListByDepartment(ctx context.Context, departmentID uuid.UUID, limit, offset int) ([]*Equipment, int, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	DepartmentExists(ctx context.Context, departmentID uuid.UUID) (bool, error)
}

type DetailRepository interface {
	Create(ctx context.Context, d *Detail) error
	GetByID(ctx context.Context, id uuid.UUID) (*Detail, error)
	ListByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]*Detail, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type ParameterRepository interface {
	Create(ctx context.Context, p *Parameter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Parameter, error)
	ListByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]*Parameter, error)
	UpdateConfig(ctx context.Context, id uuid.UUID, config map[string]interface{}) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}
