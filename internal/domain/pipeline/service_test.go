package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinicops/internal/platform/db"
)

type mockRepo struct {
	pipelines map[uuid.UUID]*Pipeline
}

func newMockRepo() *mockRepo {
	return &mockRepo{pipelines: make(map[uuid.UUID]*Pipeline)}
}

func (m *mockRepo) Create(_ context.Context, p *Pipeline) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	for i := range p.Stages {
		p.Stages[i].ID = uuid.New()
		p.Stages[i].PipelineID = p.ID
	}
	m.pipelines[p.ID] = p
	return nil
}

func (m *mockRepo) Get(_ context.Context, id uuid.UUID) (*Pipeline, error) {
	p, ok := m.pipelines[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Pipeline, int, error) {
	var out []*Pipeline
	for _, p := range m.pipelines {
		if !p.IsDeleted {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) stage(id uuid.UUID) *Stage {
	for _, p := range m.pipelines {
		for i := range p.Stages {
			if p.Stages[i].ID == id {
				return &p.Stages[i]
			}
		}
	}
	return nil
}

func (m *mockRepo) AddField(_ context.Context, f *Field) error {
	f.ID = uuid.New()
	s := m.stage(f.StageID)
	s.Fields = append(s.Fields, *f)
	return nil
}

func (m *mockRepo) AddRule(_ context.Context, r *Rule) error {
	r.ID = uuid.New()
	s := m.stage(r.StageID)
	s.Rules = append(s.Rules, *r)
	return nil
}

func (m *mockRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	p, ok := m.pipelines[id]
	if !ok {
		return db.ErrNotFound
	}
	p.IsDeleted = true
	p.IsActive = false
	return nil
}

func createSampleFlow(t *testing.T, svc *Service) *Pipeline {
	t.Helper()
	p, err := svc.Create(context.Background(), "Sample flow", []StageInput{
		{Name: "Intake", Position: 0},
		{Name: "Analysis", Position: 1},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return p
}

func TestService_Create(t *testing.T) {
	svc := NewService(newMockRepo())
	p := createSampleFlow(t, svc)
	if !p.IsActive || len(p.Stages) != 2 || !p.Stages[0].IsActive {
		t.Errorf("unexpected pipeline: %+v", p)
	}
}

func TestService_Create_Invalid(t *testing.T) {
	svc := NewService(newMockRepo())
	tests := []struct {
		name   string
		pname  string
		stages []StageInput
	}{
		{"no name", " ", nil},
		{"duplicate position", "p", []StageInput{{Name: "a", Position: 1}, {Name: "b", Position: 1}}},
		{"negative position", "p", []StageInput{{Name: "a", Position: -1}}},
		{"blank stage", "p", []StageInput{{Name: "", Position: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tt.pname, tt.stages); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestService_AddFieldAndRule(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()
	p := createSampleFlow(t, svc)
	stageID := p.Stages[0].ID

	if err := svc.AddField(ctx, p.ID, &Field{StageID: stageID, Name: "volume_ml", Type: FieldNumber, Required: true}); err != nil {
		t.Fatalf("add field: %v", err)
	}
	err := svc.AddField(ctx, p.ID, &Field{StageID: stageID, Name: "volume_ml", Type: FieldText})
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected duplicate field to be rejected, got %v", err)
	}
	if err := svc.AddField(ctx, p.ID, &Field{StageID: stageID, Name: "x", Type: "blob"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected bad type to be rejected, got %v", err)
	}
	if err := svc.AddField(ctx, p.ID, &Field{StageID: uuid.New(), Name: "x", Type: FieldText}); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected unknown stage to be not found, got %v", err)
	}

	padded := &Rule{StageID: stageID, FieldName: "volume_ml", Operator: OpGte, Value: " 2 "}
	if err := svc.AddRule(ctx, p.ID, padded); err != nil {
		t.Fatalf("add rule: %v", err)
	}
	if padded.Value != "2" {
		t.Errorf("stored operand = %q, want trimmed", padded.Value)
	}
	badRules := []Rule{
		{StageID: stageID, FieldName: "volume_ml", Operator: "between", Value: "1"},
		{StageID: stageID, FieldName: "missing", Operator: OpEq, Value: "1"},
		{StageID: stageID, FieldName: "volume_ml", Operator: OpLt, Value: "lots"},
	}
	for _, r := range badRules {
		r := r
		if err := svc.AddRule(ctx, p.ID, &r); !errors.Is(err, ErrInvalid) {
			t.Errorf("rule %+v: expected ErrInvalid, got %v", r, err)
		}
	}
}

func TestService_Evaluate(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()
	p := createSampleFlow(t, svc)
	stageID := p.Stages[0].ID
	svc.AddField(ctx, p.ID, &Field{StageID: stageID, Name: "volume_ml", Type: FieldNumber, Required: true})
	svc.AddRule(ctx, p.ID, &Rule{StageID: stageID, FieldName: "volume_ml", Operator: OpGte, Value: "2"})

	adv, err := svc.Evaluate(ctx, p.ID, 0, map[string]interface{}{"volume_ml": 3.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adv.Next == nil || adv.Next.Name != "Analysis" {
		t.Errorf("expected to advance to Analysis, got %+v", adv)
	}

	adv, _ = svc.Evaluate(ctx, p.ID, 0, map[string]interface{}{"volume_ml": 1.0})
	if adv.Result.Passed {
		t.Error("expected rule failure")
	}
}

func TestService_Delete(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()
	p := createSampleFlow(t, svc)

	for i := 0; i < 2; i++ {
		if err := svc.Delete(ctx, p.ID); err != nil {
			t.Fatalf("delete #%d: %v", i+1, err)
		}
	}
	if _, err := svc.Get(ctx, p.ID); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("deleted pipeline should read as not found, got %v", err)
	}
	if _, err := svc.Evaluate(ctx, p.ID, 0, nil); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected not found on evaluate, got %v", err)
	}
}
