package bed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-admin/internal/apperr"
	"github.com/hackgods/hospital-admin/internal/audit"
	"github.com/hackgods/hospital-admin/internal/auth"
	"github.com/hackgods/hospital-admin/internal/metrics"
)

const (
	table        = "beds"
	historyLimit = 10
)

var (
	ErrBedNotFound     = apperr.NotFound("bed not found")
	ErrDuplicateBed    = apperr.Conflict("a bed with that number already exists on this floor")
	ErrBedNotAvailable = apperr.Conflict("bed is not available")
	ErrBedNotOccupied  = apperr.Conflict("bed is not occupied")
	ErrBedNotCleaning  = apperr.Conflict("bed must be in cleaning to be marked available")
	ErrBedOccupied     = apperr.Conflict("an occupied bed cannot be deleted")
	ErrStateChange     = apperr.Conflict("state can only move between maintenance and available or cleaning; use assign and release for occupancy")
	ErrInvalidState    = apperr.Validation("state must be one of available, occupied, cleaning, maintenance")
	ErrInvalidType     = apperr.Validation("type must be one of standard, icu, pediatric, maternity")
	ErrMissingPatient  = apperr.Validation("patient_id is required")
	ErrInvalidPeriod   = apperr.Validation("from must be before to")
)

// Service is the bed occupancy manager. Each transition locks the bed row,
// checks the current state and writes bed and ledger in one transaction.
type Service struct {
	repo   Repository
	audit  audit.Recorder
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, rec audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		audit:  rec,
		logger: logger.With().Str("component", "beds").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) List(ctx context.Context, f ListFilter) (*ListResult, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	beds, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, s.wrap("list beds", err)
	}
	summary, err := s.repo.Summary(ctx)
	if err != nil {
		return nil, s.wrap("summarise beds", err)
	}
	return &ListResult{Beds: beds, Summary: summary}, nil
}

// Get returns the bed with its most recent stays.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.wrap("get bed", err)
	}
	history, err := s.repo.History(ctx, id, historyLimit)
	if err != nil {
		return nil, s.wrap("bed history", err)
	}
	return &Detail{Bed: *b, History: history}, nil
}

func (s *Service) Create(ctx context.Context, actor auth.Principal, in CreateInput) (*Bed, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	b := &Bed{
		ID:          uuid.New(),
		Number:      in.Number,
		Floor:       in.Floor,
		Type:        in.Type,
		Description: in.Description,
		State:       StateAvailable,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, s.wrap("create bed", err)
	}
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionCreate, table, b.ID))
	return b, nil
}

// Update edits the descriptive fields. A state change is only accepted for
// taking a bed into or out of maintenance.
func (s *Service) Update(ctx context.Context, actor auth.Principal, id uuid.UUID, in UpdateInput) (*Bed, error) {
	if in.Type != nil && !in.Type.Valid() {
		return nil, ErrInvalidType
	}
	if in.State != nil && !in.State.Valid() {
		return nil, ErrInvalidState
	}

	var (
		updated *Bed
		from    State
	)
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = b.State

		if in.State != nil {
			if !maintenanceMove(b.State, *in.State) {
				return ErrStateChange
			}
			b.State = *in.State
		}
		if in.Number != nil {
			n := strings.TrimSpace(*in.Number)
			if n == "" {
				return apperr.Validation("number cannot be empty")
			}
			b.Number = n
		}
		if in.Floor != nil {
			b.Floor = *in.Floor
		}
		if in.Type != nil {
			b.Type = *in.Type
		}
		if in.Description != nil {
			b.Description = strings.TrimSpace(*in.Description)
		}

		if err := tx.Save(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, s.wrap("update bed", err)
	}

	if updated.State != from {
		metrics.IncBedTransition(string(from), string(updated.State))
	}
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionUpdate, table, id))
	return updated, nil
}

// Assign admits a patient to an available bed and opens a ledger record.
func (s *Service) Assign(ctx context.Context, actor auth.Principal, id uuid.UUID, in AssignInput) (*Bed, error) {
	if in.PatientID == uuid.Nil {
		return nil, ErrMissingPatient
	}

	err := s.repo.WithTx(ctx, func(tx Repository) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.State != StateAvailable {
			return ErrBedNotAvailable
		}
		if err := tx.PatientActive(ctx, in.PatientID); err != nil {
			return err
		}

		now := s.now()
		patientID := in.PatientID
		b.State = StateOccupied
		b.CurrentPatientID = &patientID
		b.AssignedAt = &now
		if err := tx.Save(ctx, b); err != nil {
			return err
		}
		return tx.OpenStay(ctx, &OccupancyRecord{
			ID:        uuid.New(),
			BedID:     id,
			PatientID: patientID,
			EnteredAt: now,
			Reason:    strings.TrimSpace(in.Reason),
		})
	})
	if err != nil {
		return nil, s.wrap("assign bed", err)
	}

	metrics.IncBedTransition(string(StateAvailable), string(StateOccupied))
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionAssign, table, id))
	return s.refreshed(ctx, id)
}

// Release discharges the current patient, closes the open stay and sends
// the bed to cleaning. A nil reason keeps the admission reason on the stay.
func (s *Service) Release(ctx context.Context, actor auth.Principal, id uuid.UUID, reason *string) (*Bed, error) {
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.State != StateOccupied || b.CurrentPatientID == nil {
			return ErrBedNotOccupied
		}

		patientID := *b.CurrentPatientID
		now := s.now()
		b.State = StateCleaning
		b.CurrentPatientID = nil
		b.ReleasedAt = &now
		if err := tx.Save(ctx, b); err != nil {
			return err
		}
		return tx.CloseStay(ctx, id, patientID, now, reason)
	})
	if err != nil {
		return nil, s.wrap("release bed", err)
	}

	metrics.IncBedTransition(string(StateOccupied), string(StateCleaning))
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionUpdate, table, id))
	return s.refreshed(ctx, id)
}

func (s *Service) MarkAvailable(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Bed, error) {
	var updated *Bed
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.State != StateCleaning {
			return ErrBedNotCleaning
		}
		b.State = StateAvailable
		if err := tx.Save(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, s.wrap("mark bed available", err)
	}

	metrics.IncBedTransition(string(StateCleaning), string(StateAvailable))
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionUpdate, table, id))
	return updated, nil
}

// Delete removes a bed that is not occupied, along with its ledger.
func (s *Service) Delete(ctx context.Context, actor auth.Principal, id uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		b, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.State == StateOccupied {
			return ErrBedOccupied
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return s.wrap("delete bed", err)
	}
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionDelete, table, id))
	return nil
}

// Ledger returns the stays that overlap [from, to) for export.
func (s *Service) Ledger(ctx context.Context, from, to time.Time) ([]LedgerEntry, error) {
	if !from.Before(to) {
		return nil, ErrInvalidPeriod
	}
	entries, err := s.repo.Ledger(ctx, from, to)
	if err != nil {
		return nil, s.wrap("occupancy ledger", err)
	}
	return entries, nil
}

func (s *Service) refreshed(ctx context.Context, id uuid.UUID) (*Bed, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.wrap("reload bed", err)
	}
	return b, nil
}

func (s *Service) wrap(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	s.logger.Error().Err(err).Str("op", op).Msg("bed persistence failure")
	return apperr.Persistence(op, err)
}
