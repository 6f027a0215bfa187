package event

import (
	"maps"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
)

// Rows as seen by the selection validator. They mirror the catalog tables
// but carry only what validation and composition need.

type Department struct {
	ID       uuid.UUID `json:"id"`
	ClinicID uuid.UUID `json:"clinic_id"`
	Name     string    `json:"name"`
	IsActive bool      `json:"is_active"`
}

type Equipment struct {
	ID           uuid.UUID `json:"id"`
	DepartmentID uuid.UUID `json:"department_id"`
	Name         string    `json:"name"`
	IsActive     bool      `json:"is_active"`
	IsDeleted    bool      `json:"is_deleted"`
}

type EquipmentDetail struct {
	ID           uuid.UUID   `json:"id"`
	EquipmentID  uuid.UUID   `json:"equipment_id"`
	SerialNumber null.String `json:"serial_number"`
	Make         null.String `json:"make"`
	Model        null.String `json:"model"`
	IsActive     bool        `json:"is_active"`
}

type Parameter struct {
	ID          uuid.UUID              `json:"id"`
	EquipmentID uuid.UUID              `json:"equipment_id"`
	Name        string                 `json:"name"`
	Config      map[string]interface{} `json:"config"`
	IsActive    bool                   `json:"is_active"`
}

func (p Parameter) clone() Parameter {
	p.Config = maps.Clone(p.Config)
	return p
}

type Employee struct {
	ID       uuid.UUID   `json:"id"`
	Name     string      `json:"name"`
	Email    null.String `json:"email"`
	Phone    null.String `json:"phone"`
	IsActive bool        `json:"is_active"`
}

// Schedule is stored exactly as submitted. One-time and recurring fields may
// both be present.
type Schedule struct {
	Type              string      `json:"type" validate:"required,max=32"`
	FromTime          null.String `json:"from_time" validate:"omitempty,clock"`
	ToTime            null.String `json:"to_time" validate:"omitempty,clock"`
	OneTimeDate       null.String `json:"one_time_date" validate:"omitempty,datetime=2006-01-02"`
	StartDate         null.String `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate           null.String `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Months            []int32     `json:"months" validate:"omitempty,dive,min=1,max=12"`
	Days              []string    `json:"days" validate:"omitempty,dive,min=1,max=16"`
	RecurringDuration null.Int    `json:"recurring_duration" validate:"omitempty,min=1"`
}

// Event is the composed aggregate: the event row, its schedule and the
// linked equipment details and parameters.
type Event struct {
	ID               uuid.UUID         `json:"id"`
	DepartmentID     uuid.UUID         `json:"department_id"`
	AssigneeID       uuid.UUID         `json:"assignee_id"`
	Name             string            `json:"event_name"`
	Description      string            `json:"description"`
	CreatedAt        time.Time         `json:"created_at"`
	Assignee         *Employee         `json:"assignee,omitempty"`
	Schedule         Schedule          `json:"schedule"`
	EquipmentDetails []EquipmentDetail `json:"equipment_details"`
	Parameters       []Parameter       `json:"parameters"`
}

// Summary is a list row: the event with its schedule type and link counts.
type Summary struct {
	ID             uuid.UUID `json:"id"`
	DepartmentID   uuid.UUID `json:"department_id"`
	AssigneeID     uuid.UUID `json:"assignee_id"`
	AssigneeName   string    `json:"assignee_name"`
	Name           string    `json:"event_name"`
	Description    string    `json:"description"`
	ScheduleType   string    `json:"schedule_type"`
	EquipmentCount int       `json:"equipment_count"`
	ParameterCount int       `json:"parameter_count"`
	CreatedAt      time.Time `json:"created_at"`
}
