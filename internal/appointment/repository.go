package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-admin/internal/doctor"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// WithTx runs fn against a view of the repository bound to one
	// transaction. An error from fn rolls everything back.
	WithTx(ctx context.Context, fn func(tx Repository) error) error

	// LockDoctor serialises writes to one doctor's calendar until the
	// surrounding transaction ends.
	LockDoctor(ctx context.Context, doctorID uuid.UUID) error

	PatientActive(ctx context.Context, patientID uuid.UUID) error
	GetActiveDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
	RulesForDay(ctx context.Context, doctorID uuid.UUID, day time.Weekday) ([]doctor.ScheduleRule, error)

	// FindOverlapping returns non-cancelled appointments of the doctor that
	// intersect [start, end). exclude is skipped; pass uuid.Nil for none.
	FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, exclude uuid.UUID) ([]Appointment, error)

	Insert(ctx context.Context, a *Appointment) error
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status, cancelledBy *uuid.UUID, reason *string) (*Appointment, error)
	Reschedule(ctx context.Context, a *Appointment) error

	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)
	List(ctx context.Context, f ListFilter) ([]Detail, int, error)

	// FindOverdue returns pending or confirmed appointments that ended
	// before cutoff.
	FindOverdue(ctx context.Context, cutoff time.Time, limit int) ([]Appointment, error)
}
