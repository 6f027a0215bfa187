package staff

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Employee) error
	GetByID(ctx context.Context, id uuid.UUID) (*Employee, error)
	GetByUserID(ctx context.Context, userID string) (*Employee, error)
	List(ctx context.Context, departmentID *uuid.UUID, limit, offset int) ([]*Employee, int, error)
}
