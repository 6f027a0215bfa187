package clinic

import (
	"time"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
)

type Clinic struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	Name      string      `db:"name" json:"name"`
	Address   null.String `db:"address" json:"address"`
	Phone     null.String `db:"phone" json:"phone"`
	Email     null.String `db:"email" json:"email"`
	IsActive  bool        `db:"is_active" json:"is_active"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// Department is an organizational unit that owns equipment and events.
type Department struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ClinicID  uuid.UUID `db:"clinic_id" json:"clinic_id"`
	Name      string    `db:"name" json:"name"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
