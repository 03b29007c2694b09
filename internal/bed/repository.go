package bed

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error

	// GetForUpdate loads the bed and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error)
	Get(ctx context.Context, id uuid.UUID) (*Bed, error)
	List(ctx context.Context, f ListFilter) ([]Bed, error)
	Summary(ctx context.Context) (Summary, error)

	Create(ctx context.Context, b *Bed) error
	// Save writes every mutable column of b.
	Save(ctx context.Context, b *Bed) error
	// Delete removes the bed together with its ledger.
	Delete(ctx context.Context, id uuid.UUID) error

	PatientActive(ctx context.Context, patientID uuid.UUID) error

	OpenStay(ctx context.Context, rec *OccupancyRecord) error
	// CloseStay stamps exitedAt on the open record of the bed for patientID.
	// A nil reason keeps the reason given at admission.
	CloseStay(ctx context.Context, bedID, patientID uuid.UUID, exitedAt time.Time, reason *string) error
	History(ctx context.Context, bedID uuid.UUID, limit int) ([]OccupancyRecord, error)

	// Ledger returns every stay that overlaps [from, to).
	Ledger(ctx context.Context, from, to time.Time) ([]LedgerEntry, error)
}
