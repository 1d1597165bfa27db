package dentist

import (
	"time"

	"github.com/google/uuid"
)

// Dentist maps to the dentists table.
type Dentist struct {
	ID            uuid.UUID `db:"id" json:"id"`
	FirstName     string    `db:"first_name" json:"first_name"`
	LastName      string    `db:"last_name" json:"last_name"`
	Specialty     *string   `db:"specialty" json:"specialty,omitempty"`
	LicenseNumber string    `db:"license_number" json:"license_number"`
	Phone         *string   `db:"phone" json:"phone,omitempty"`
	Email         *string   `db:"email" json:"email,omitempty"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
