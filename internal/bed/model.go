package bed

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-admin/internal/apperr"
)

type State string

const (
	StateAvailable   State = "available"
	StateOccupied    State = "occupied"
	StateCleaning    State = "cleaning"
	StateMaintenance State = "maintenance"
)

func (s State) Valid() bool {
	switch s {
	case StateAvailable, StateOccupied, StateCleaning, StateMaintenance:
		return true
	}
	return false
}

type Type string

const (
	TypeStandard  Type = "standard"
	TypeICU       Type = "icu"
	TypePediatric Type = "pediatric"
	TypeMaternity Type = "maternity"
)

func (t Type) Valid() bool {
	switch t {
	case TypeStandard, TypeICU, TypePediatric, TypeMaternity:
		return true
	}
	return false
}

// Bed holds CurrentPatientID exactly when State is occupied.
type Bed struct {
	ID               uuid.UUID  `json:"id"`
	Number           string     `json:"number"`
	Floor            int        `json:"floor"`
	Type             Type       `json:"type"`
	Description      string     `json:"description"`
	State            State      `json:"state"`
	CurrentPatientID *uuid.UUID `json:"current_patient_id"`
	PatientName      string     `json:"patient_name,omitempty"`
	AssignedAt       *time.Time `json:"assigned_at"`
	ReleasedAt       *time.Time `json:"released_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// OccupancyRecord is one stay in a bed. ExitedAt is nil while the stay is
// open; a bed has at most one open record.
type OccupancyRecord struct {
	ID          uuid.UUID  `json:"id"`
	BedID       uuid.UUID  `json:"bed_id"`
	PatientID   uuid.UUID  `json:"patient_id"`
	PatientName string     `json:"patient_name,omitempty"`
	EnteredAt   time.Time  `json:"entered_at"`
	ExitedAt    *time.Time `json:"exited_at"`
	Reason      string     `json:"reason"`
}

// LedgerEntry is an occupancy record with the bed it belongs to, as
// exported for a reporting period.
type LedgerEntry struct {
	OccupancyRecord
	BedNumber string `json:"bed_number"`
	Floor     int    `json:"floor"`
	BedType   Type   `json:"bed_type"`
}

type Detail struct {
	Bed
	History []OccupancyRecord `json:"history"`
}

type Summary struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Occupied    int `json:"occupied"`
	Cleaning    int `json:"cleaning"`
	Maintenance int `json:"maintenance"`
}

// Count tallies one bed in state.
func (s *Summary) Count(state State) {
	s.Total++
	switch state {
	case StateAvailable:
		s.Available++
	case StateOccupied:
		s.Occupied++
	case StateCleaning:
		s.Cleaning++
	case StateMaintenance:
		s.Maintenance++
	}
}

type ListResult struct {
	Beds    []Bed   `json:"beds"`
	Summary Summary `json:"summary"`
}

type ListFilter struct {
	State State
	Type  Type
	Floor *int
}

func (f ListFilter) validate() error {
	if f.State != "" && !f.State.Valid() {
		return ErrInvalidState
	}
	if f.Type != "" && !f.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

type CreateInput struct {
	Number      string `json:"number"`
	Floor       int    `json:"floor"`
	Type        Type   `json:"type"`
	Description string `json:"description"`
}

func (in *CreateInput) normalize() error {
	in.Number = strings.TrimSpace(in.Number)
	in.Description = strings.TrimSpace(in.Description)
	if in.Type == "" {
		in.Type = TypeStandard
	}
	if in.Number == "" {
		return apperr.Validation("number is required")
	}
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

// UpdateInput is a partial update. State only accepts the maintenance
// moves; occupancy changes go through assign and release.
type UpdateInput struct {
	Number      *string `json:"number"`
	Floor       *int    `json:"floor"`
	Type        *Type   `json:"type"`
	Description *string `json:"description"`
	State       *State  `json:"state"`
}

type AssignInput struct {
	PatientID uuid.UUID `json:"patient_id"`
	Reason    string    `json:"reason"`
}

// maintenanceMove reports whether an administrative update may move a bed
// from one state to another.
func maintenanceMove(from, to State) bool {
	switch {
	case from == to:
		return true
	case to == StateMaintenance:
		return from == StateAvailable || from == StateCleaning
	case from == StateMaintenance:
		return to == StateAvailable
	}
	return false
}
