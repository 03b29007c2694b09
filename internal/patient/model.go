package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-admin/internal/apperr"
)

var (
	ErrPatientNotFound = apperr.NotFound("patient not found")
	ErrNationalIDTaken = apperr.Conflict("a patient with that national id already exists")
)

const birthDateLayout = "2006-01-02"

var validBloodTypes = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

type EmergencyContact struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
}

type Patient struct {
	ID               uuid.UUID        `json:"id"`
	NationalID       string           `json:"national_id"`
	FirstName        string           `json:"first_name"`
	LastName         string           `json:"last_name"`
	BirthDate        time.Time        `json:"birth_date"`
	Gender           string           `json:"gender"`
	Phone            string           `json:"phone"`
	Email            string           `json:"email"`
	Address          string           `json:"address"`
	BloodType        string           `json:"blood_type"`
	Allergies        []string         `json:"allergies"`
	EmergencyContact EmergencyContact `json:"emergency_contact"`
	Active           bool             `json:"active"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Input is used for both create and partial update; nil fields are left
// untouched on update.
type Input struct {
	NationalID       *string           `json:"national_id"`
	FirstName        *string           `json:"first_name"`
	LastName         *string           `json:"last_name"`
	BirthDate        *string           `json:"birth_date"`
	Gender           *string           `json:"gender"`
	Phone            *string           `json:"phone"`
	Email            *string           `json:"email"`
	Address          *string           `json:"address"`
	BloodType        *string           `json:"blood_type"`
	Allergies        []string          `json:"allergies"`
	EmergencyContact *EmergencyContact `json:"emergency_contact"`
}

func (in Input) apply(p *Patient) error {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&p.NationalID, in.NationalID)
	set(&p.FirstName, in.FirstName)
	set(&p.LastName, in.LastName)
	set(&p.Gender, in.Gender)
	set(&p.Phone, in.Phone)
	set(&p.Email, in.Email)
	set(&p.Address, in.Address)
	set(&p.BloodType, in.BloodType)

	if in.BirthDate != nil {
		d, err := time.Parse(birthDateLayout, *in.BirthDate)
		if err != nil {
			return apperr.Validation("birth_date must be YYYY-MM-DD")
		}
		p.BirthDate = d
	}
	if in.Allergies != nil {
		p.Allergies = in.Allergies
	}
	if in.EmergencyContact != nil {
		p.EmergencyContact = *in.EmergencyContact
	}
	return nil
}

func (p *Patient) validate() error {
	switch {
	case p.NationalID == "":
		return apperr.Validation("national_id is required")
	case p.FirstName == "" || p.LastName == "":
		return apperr.Validation("first_name and last_name are required")
	case p.BirthDate.IsZero():
		return apperr.Validation("birth_date is required")
	case p.BirthDate.After(time.Now()):
		return apperr.Validation("birth_date cannot be in the future")
	case p.BloodType != "" && !validBloodTypes[p.BloodType]:
		return apperr.Validationf("invalid blood_type %q", p.BloodType)
	}
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	return nil
}

type ListFilter struct {
	Search string
	Page   int
	Limit  int
}

func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	f.Search = strings.TrimSpace(f.Search)
}

func (f ListFilter) Offset() int { return (f.Page - 1) * f.Limit }
