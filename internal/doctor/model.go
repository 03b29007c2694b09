package doctor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-admin/internal/apperr"
)

const DefaultConsultationMinutes = 30

var (
	ErrDoctorNotFound = apperr.NotFound("doctor not found")
	ErrLicenceTaken   = apperr.Conflict("a doctor with that licence already exists")
	ErrDuplicateRule  = apperr.Conflict("a schedule rule already starts at that time on that day")
)

type Doctor struct {
	ID                  uuid.UUID  `json:"id"`
	UserID              *uuid.UUID `json:"user_id,omitempty"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	Specialty           string     `json:"specialty"`
	Licence             string     `json:"licence"`
	Phone               string     `json:"phone"`
	Email               string     `json:"email"`
	ConsultationMinutes int        `json:"consultation_minutes"`
	Active              bool       `json:"active"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// SlotLength is the doctor's default appointment length.
func (d *Doctor) SlotLength() time.Duration {
	m := d.ConsultationMinutes
	if m <= 0 {
		m = DefaultConsultationMinutes
	}
	return time.Duration(m) * time.Minute
}

// TimeOfDay is a wall clock time in minutes after midnight.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// On returns the instant of t on the calendar day of date, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(t)/60, int(t)%60, 0, 0, date.Location())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ScheduleRule is a recurring weekly working window. DayOfWeek follows
// time.Weekday: 0 is Sunday.
type ScheduleRule struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	DayOfWeek int       `json:"day_of_week"`
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
	Active    bool      `json:"active"`
}

func (r *ScheduleRule) validate() error {
	switch {
	case r.DayOfWeek < 0 || r.DayOfWeek > 6:
		return apperr.Validation("day_of_week must be between 0 (Sunday) and 6 (Saturday)")
	case r.StartTime < 0 || r.EndTime > 24*60:
		return apperr.Validation("start_time and end_time must be within the day")
	case r.StartTime >= r.EndTime:
		return apperr.Validation("start_time must be before end_time")
	}
	return nil
}

type Input struct {
	UserID              *uuid.UUID `json:"user_id"`
	FirstName           *string    `json:"first_name"`
	LastName            *string    `json:"last_name"`
	Specialty           *string    `json:"specialty"`
	Licence             *string    `json:"licence"`
	Phone               *string    `json:"phone"`
	Email               *string    `json:"email"`
	ConsultationMinutes *int       `json:"consultation_minutes"`
}

func (in Input) apply(d *Doctor) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&d.FirstName, in.FirstName)
	set(&d.LastName, in.LastName)
	set(&d.Specialty, in.Specialty)
	set(&d.Licence, in.Licence)
	set(&d.Phone, in.Phone)
	set(&d.Email, in.Email)
	if in.UserID != nil {
		d.UserID = in.UserID
	}
	if in.ConsultationMinutes != nil {
		d.ConsultationMinutes = *in.ConsultationMinutes
	}
}

func (d *Doctor) validate() error {
	switch {
	case d.FirstName == "" || d.LastName == "":
		return apperr.Validation("first_name and last_name are required")
	case d.Specialty == "":
		return apperr.Validation("specialty is required")
	case d.Licence == "":
		return apperr.Validation("licence is required")
	case d.ConsultationMinutes <= 0 || d.ConsultationMinutes > 8*60:
		return apperr.Validation("consultation_minutes must be between 1 and 480")
	}
	return nil
}

type ListFilter struct {
	Specialty string
}
