package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	PatientActive(ctx context.Context, patientID uuid.UUID) error
	// NextNumber draws the next value of the invoice number sequence.
	NextNumber(ctx context.Context) (int64, error)

	List(ctx context.Context, f ListFilter) ([]Invoice, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Create(ctx context.Context, inv *Invoice) error

	// SettlePending moves a pending invoice to status. It returns
	// ErrNotPending when the invoice is no longer pending.
	SettlePending(ctx context.Context, id uuid.UUID, status PaymentStatus, method string, at time.Time) (*Invoice, error)
}
