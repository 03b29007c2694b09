package clinical

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-admin/internal/apperr"
)

var ErrRecordNotFound = apperr.NotFound("clinical record not found")

// Record is one clinical encounter note. Vitals are optional.
type Record struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	AppointmentID  *uuid.UUID `json:"appointment_id,omitempty"`
	DoctorID       *uuid.UUID `json:"doctor_id,omitempty"`
	DoctorName     string     `json:"doctor_name,omitempty"`
	RecordedAt     time.Time  `json:"recorded_at"`
	ChiefComplaint string     `json:"chief_complaint"`
	Diagnosis      string     `json:"diagnosis"`
	Treatment      string     `json:"treatment"`
	Prescription   string     `json:"prescription"`
	Notes          string     `json:"notes"`
	WeightKg       *float64   `json:"weight_kg,omitempty"`
	TemperatureC   *float64   `json:"temperature_c,omitempty"`
	Systolic       *int       `json:"systolic,omitempty"`
	Diastolic      *int       `json:"diastolic,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type CreateInput struct {
	PatientID     uuid.UUID  `json:"patient_id"`
	AppointmentID *uuid.UUID `json:"appointment_id"`
	UpdateInput
}

// UpdateInput is partial: nil leaves a field alone.
type UpdateInput struct {
	ChiefComplaint *string  `json:"chief_complaint"`
	Diagnosis      *string  `json:"diagnosis"`
	Treatment      *string  `json:"treatment"`
	Prescription   *string  `json:"prescription"`
	Notes          *string  `json:"notes"`
	WeightKg       *float64 `json:"weight_kg"`
	TemperatureC   *float64 `json:"temperature_c"`
	Systolic       *int     `json:"systolic"`
	Diastolic      *int     `json:"diastolic"`
}

func (in UpdateInput) apply(r *Record) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&r.ChiefComplaint, in.ChiefComplaint)
	set(&r.Diagnosis, in.Diagnosis)
	set(&r.Treatment, in.Treatment)
	set(&r.Prescription, in.Prescription)
	set(&r.Notes, in.Notes)
	if in.WeightKg != nil {
		r.WeightKg = in.WeightKg
	}
	if in.TemperatureC != nil {
		r.TemperatureC = in.TemperatureC
	}
	if in.Systolic != nil {
		r.Systolic = in.Systolic
	}
	if in.Diastolic != nil {
		r.Diastolic = in.Diastolic
	}
}

func (r *Record) validate() error {
	switch {
	case r.PatientID == uuid.Nil:
		return apperr.Validation("patient_id is required")
	case r.WeightKg != nil && (*r.WeightKg <= 0 || *r.WeightKg > 700):
		return apperr.Validation("weight_kg must be between 0 and 700")
	case r.TemperatureC != nil && (*r.TemperatureC < 25 || *r.TemperatureC > 45):
		return apperr.Validation("temperature_c must be between 25 and 45")
	case r.Systolic != nil && (*r.Systolic < 40 || *r.Systolic > 300):
		return apperr.Validation("systolic must be between 40 and 300")
	case r.Diastolic != nil && (*r.Diastolic < 20 || *r.Diastolic > 200):
		return apperr.Validation("diastolic must be between 20 and 200")
	}
	return nil
}

type Page struct {
	Records    []Record `json:"records"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalPages int      `json:"total_pages"`
}
