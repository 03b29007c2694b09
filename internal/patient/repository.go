package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	List(ctx context.Context, f ListFilter) ([]Patient, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Create(ctx context.Context, p *Patient) error
	Update(ctx context.Context, p *Patient) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}
