package pipeline

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create stores the pipeline and its stages in one transaction.
	Create(ctx context.Context, p *Pipeline) error
	// Get loads a pipeline with stages ordered by position, each with its
	// fields and rules.
	Get(ctx context.Context, id uuid.UUID) (*Pipeline, error)
	List(ctx context.Context, limit, offset int) ([]*Pipeline, int, error)
	AddField(ctx context.Context, f *Field) error
	AddRule(ctx context.Context, r *Rule) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}
