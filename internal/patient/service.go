package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-admin/internal/apperr"
	"github.com/hackgods/hospital-admin/internal/audit"
	"github.com/hackgods/hospital-admin/internal/auth"
)

const table = "patients"

type Service struct {
	repo  Repository
	audit audit.Recorder
}

func NewService(repo Repository, rec audit.Recorder) *Service {
	return &Service{repo: repo, audit: rec}
}

type Page struct {
	Patients []Patient `json:"patients"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}

func (s *Service) List(ctx context.Context, f ListFilter) (*Page, error) {
	f.normalize()
	patients, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, apperr.Persistence("list patients", err)
	}
	return &Page{Patients: patients, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, wrap("get patient", err)
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, actor auth.Principal, in Input) (*Patient, error) {
	p := &Patient{ID: uuid.New()}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, wrap("create patient", err)
	}

	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionCreate, table, p.ID))
	return p, nil
}

func (s *Service) Update(ctx context.Context, actor auth.Principal, id uuid.UUID, in Input) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, wrap("load patient", err)
	}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, wrap("update patient", err)
	}

	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionUpdate, table, p.ID))
	return p, nil
}

// Delete is a soft delete; appointments and ledger rows keep pointing at the
// patient.
func (s *Service) Delete(ctx context.Context, actor auth.Principal, id uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return wrap("delete patient", err)
	}
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionDelete, table, id))
	return nil
}

func wrap(op string, err error) error {
	if errors.Is(err, ErrPatientNotFound) || errors.Is(err, ErrNationalIDTaken) {
		return err
	}
	return apperr.Persistence(op, err)
}
