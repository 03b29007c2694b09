package clinical

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	PatientActive(ctx context.Context, patientID uuid.UUID) error
	// DoctorForUser returns the doctor row linked to a user account, or
	// uuid.Nil when there is none.
	DoctorForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Record, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Create(ctx context.Context, r *Record) error
	Update(ctx context.Context, r *Record) error

	CreateAttachment(ctx context.Context, a *Attachment) error
	ListAttachments(ctx context.Context, recordID uuid.UUID) ([]Attachment, error)
	// GetAttachment returns ErrAttachmentNotFound unless the attachment
	// belongs to recordID.
	GetAttachment(ctx context.Context, recordID, id uuid.UUID) (*Attachment, error)
	DeleteAttachment(ctx context.Context, recordID, id uuid.UUID) error
}
