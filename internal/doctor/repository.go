package doctor

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	List(ctx context.Context, f ListFilter) ([]Doctor, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Create(ctx context.Context, d *Doctor) error
	Update(ctx context.Context, d *Doctor) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Specialties(ctx context.Context) ([]string, error)

	ListRules(ctx context.Context, doctorID uuid.UUID) ([]ScheduleRule, error)
	CreateRule(ctx context.Context, r *ScheduleRule) error
}
