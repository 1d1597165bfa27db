package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. Patients are never hard-deleted;
// deactivation keeps the row for billing history.
type Patient struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	FirstName         string     `db:"first_name" json:"first_name"`
	LastName          string     `db:"last_name" json:"last_name"`
	MiddleName        *string    `db:"middle_name" json:"middle_name,omitempty"`
	Gender            *string    `db:"gender" json:"gender,omitempty"`
	BirthDate         *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Phone             *string    `db:"phone" json:"phone,omitempty"`
	Email             *string    `db:"email" json:"email,omitempty"`
	AddressLine       *string    `db:"address_line" json:"address_line,omitempty"`
	AddressCity       *string    `db:"address_city" json:"address_city,omitempty"`
	AddressPostalCode *string    `db:"address_postal_code" json:"address_postal_code,omitempty"`
	Allergies         *string    `db:"allergies" json:"allergies,omitempty"`
	MedicalNotes      *string    `db:"medical_notes" json:"medical_notes,omitempty"`
	Active            bool       `db:"active" json:"active"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}
