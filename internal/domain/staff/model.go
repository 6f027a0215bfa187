package staff

import (
	"time"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
)

// Employee is a staff member who can be assigned events. UserID links the
// record to the authenticated identity subject.
type Employee struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	UserID       null.String   `db:"user_id" json:"user_id"`
	Name         string        `db:"name" json:"name"`
	Email        null.String   `db:"email" json:"email"`
	Phone        null.String   `db:"phone" json:"phone"`
	DepartmentID uuid.NullUUID `db:"department_id" json:"department_id"`
	IsActive     bool          `db:"is_active" json:"is_active"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}
