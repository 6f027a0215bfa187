package equipment

import (
	"time"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
)

// Equipment is a kind of instrument owned by a department. Soft-deleted
// equipment is kept for history but never selectable.
type Equipment struct {
	ID           uuid.UUID `db:"id" json:"id"`
	DepartmentID uuid.UUID `db:"department_id" json:"department_id"`
	Name         string    `db:"name" json:"name"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	IsDeleted    bool      `db:"is_deleted" json:"is_deleted"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Detail is a physical unit of an Equipment.
type Detail struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	EquipmentID  uuid.UUID   `db:"equipment_id" json:"equipment_id"`
	SerialNumber null.String `db:"serial_number" json:"serial_number"`
	Make         null.String `db:"make" json:"make"`
	Model        null.String `db:"model" json:"model"`
	IsActive     bool        `db:"is_active" json:"is_active"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// Parameter is a measurable attribute of an Equipment. Config is free-form.
type Parameter struct {
	ID          uuid.UUID              `db:"id" json:"id"`
	EquipmentID uuid.UUID              `db:"equipment_id" json:"equipment_id"`
	Name        string                 `db:"name" json:"name"`
	Config      map[string]interface{} `db:"config" json:"config"`
	IsActive    bool                   `db:"is_active" json:"is_active"`
	IsDeleted   bool                   `db:"is_deleted" json:"is_deleted"`
	CreatedAt   time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time              `db:"updated_at" json:"updated_at"`
}
