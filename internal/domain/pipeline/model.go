package pipeline

import (
	"time"

	"github.com/google/uuid"
)

type FieldType string

const (
	FieldText   FieldType = "text"
	FieldNumber FieldType = "number"
	FieldDate   FieldType = "date"
	FieldBool   FieldType = "bool"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldNumber, FieldDate, FieldBool:
		return true
	}
	return false
}

type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpContains Operator = "contains"
	OpPresent  Operator = "present"
)

func (o Operator) Valid() bool {
	switch o {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpContains, OpPresent:
		return true
	}
	return false
}

// Pipeline is an ordered sequence of stages a record moves through.
type Pipeline struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	Stages    []Stage   `json:"stages"`
}

// Stage is one step of a pipeline. Position is unique within the pipeline.
type Stage struct {
	ID         uuid.UUID `json:"id"`
	PipelineID uuid.UUID `json:"pipeline_id"`
	Name       string    `json:"name"`
	Position   int       `json:"position"`
	IsActive   bool      `json:"is_active"`
	Fields     []Field   `json:"fields"`
	Rules      []Rule    `json:"rules"`
}

// Field declares a payload key the stage expects.
type Field struct {
	ID       uuid.UUID `json:"id"`
	StageID  uuid.UUID `json:"stage_id"`
	Name     string    `json:"name"`
	Type     FieldType `json:"field_type"`
	Required bool      `json:"is_required"`
}

// Rule is a predicate on one payload field that must hold to leave a stage.
type Rule struct {
	ID        uuid.UUID `json:"id"`
	StageID   uuid.UUID `json:"stage_id"`
	FieldName string    `json:"field_name"`
	Operator  Operator  `json:"operator"`
	Value     string    `json:"value"`
}
