package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicops/clinicops/internal/platform/db"
)

var ErrInvalid = errors.New("invalid input")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// StageInput describes one stage of a new pipeline.
type StageInput struct {
	Name     string
	Position int
	Inactive bool
}

// Create stores a pipeline with its stages. Positions must be distinct and
// non-negative; the stages are written together or not at all.
func (s *Service) Create(ctx context.Context, name string, stages []StageInput) (*Pipeline, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: pipeline name is required", ErrInvalid)
	}

	p := &Pipeline{Name: name, IsActive: true, Stages: make([]Stage, 0, len(stages))}
	seen := make(map[int]bool, len(stages))
	for _, in := range stages {
		stageName := strings.TrimSpace(in.Name)
		if stageName == "" {
			return nil, fmt.Errorf("%w: stage name is required", ErrInvalid)
		}
		if in.Position < 0 {
			return nil, fmt.Errorf("%w: stage position %d is negative", ErrInvalid, in.Position)
		}
		if seen[in.Position] {
			return nil, fmt.Errorf("%w: duplicate stage position %d", ErrInvalid, in.Position)
		}
		seen[in.Position] = true
		p.Stages = append(p.Stages, Stage{
			Name:     stageName,
			Position: in.Position,
			IsActive: !in.Inactive,
			Fields:   []Field{},
			Rules:    []Rule{},
		})
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: duplicate stage position", ErrInvalid)
		}
		return nil, err
	}
	return p, nil
}

// Get returns a live pipeline. Deleted pipelines read as not found.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Pipeline, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted {
		return nil, db.ErrNotFound
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Pipeline, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Delete soft-deletes the pipeline. Deleting twice succeeds.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.IsDeleted {
		return nil
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) stage(ctx context.Context, pipelineID, stageID uuid.UUID) (*Stage, error) {
	p, err := s.Get(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	for i := range p.Stages {
		if p.Stages[i].ID == stageID {
			return &p.Stages[i], nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *Service) AddField(ctx context.Context, pipelineID uuid.UUID, f *Field) error {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return fmt.Errorf("%w: field name is required", ErrInvalid)
	}
	if !f.Type.Valid() {
		return fmt.Errorf("%w: unknown field type %q", ErrInvalid, f.Type)
	}
	st, err := s.stage(ctx, pipelineID, f.StageID)
	if err != nil {
		return err
	}
	for _, existing := range st.Fields {
		if existing.Name == f.Name {
			return fmt.Errorf("%w: field %q already exists on stage", ErrInvalid, f.Name)
		}
	}
	if err := s.repo.AddField(ctx, f); err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: field %q already exists on stage", ErrInvalid, f.Name)
		}
		return err
	}
	return nil
}

// AddRule attaches a rule to a stage. The rule must name a declared field
// and, for ordering operators on number fields, carry a numeric operand.
func (s *Service) AddRule(ctx context.Context, pipelineID uuid.UUID, r *Rule) error {
	if !r.Operator.Valid() {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalid, r.Operator)
	}
	r.Value = strings.TrimSpace(r.Value)
	st, err := s.stage(ctx, pipelineID, r.StageID)
	if err != nil {
		return err
	}

	var field *Field
	for i := range st.Fields {
		if st.Fields[i].Name == r.FieldName {
			field = &st.Fields[i]
			break
		}
	}
	if field == nil {
		return fmt.Errorf("%w: stage has no field %q", ErrInvalid, r.FieldName)
	}
	if field.Type == FieldNumber && isOrdering(r.Operator) {
		if _, ok := asNumber(jsonNumber(r.Value)); !ok {
			return fmt.Errorf("%w: operator %s on %q needs a numeric value", ErrInvalid, r.Operator, field.Name)
		}
	}
	return s.repo.AddRule(ctx, r)
}

// Evaluate runs the stage at position against payload and reports the next
// stage when it passes.
func (s *Service) Evaluate(ctx context.Context, pipelineID uuid.UUID, position int, payload map[string]interface{}) (*Advancement, error) {
	p, err := s.Get(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, fmt.Errorf("%w: pipeline is inactive", ErrInvalid)
	}
	return Advance(p, position, payload)
}

func isOrdering(op Operator) bool {
	return op == OpGt || op == OpGte || op == OpLt || op == OpLte
}
