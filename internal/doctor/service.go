package doctor

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-admin/internal/apperr"
	"github.com/hackgods/hospital-admin/internal/audit"
	"github.com/hackgods/hospital-admin/internal/auth"
)

type Service struct {
	repo  Repository
	audit audit.Recorder
}

func NewService(repo Repository, rec audit.Recorder) *Service {
	return &Service{repo: repo, audit: rec}
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Doctor, error) {
	doctors, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, apperr.Persistence("list doctors", err)
	}
	return doctors, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, wrap("get doctor", err)
	}
	return d, nil
}

func (s *Service) Create(ctx context.Context, actor auth.Principal, in Input) (*Doctor, error) {
	d := &Doctor{ID: uuid.New(), ConsultationMinutes: DefaultConsultationMinutes}
	in.apply(d)
	if err := d.validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, wrap("create doctor", err)
	}
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionCreate, "doctors", d.ID))
	return d, nil
}

func (s *Service) Update(ctx context.Context, actor auth.Principal, id uuid.UUID, in Input) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, wrap("load doctor", err)
	}
	in.apply(d)
	if err := d.validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, wrap("update doctor", err)
	}
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionUpdate, "doctors", d.ID))
	return d, nil
}

func (s *Service) Delete(ctx context.Context, actor auth.Principal, id uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return wrap("delete doctor", err)
	}
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionDelete, "doctors", id))
	return nil
}

func (s *Service) Specialties(ctx context.Context) ([]string, error) {
	out, err := s.repo.Specialties(ctx)
	if err != nil {
		return nil, apperr.Persistence("list specialties", err)
	}
	return out, nil
}

func (s *Service) ListRules(ctx context.Context, doctorID uuid.UUID) ([]ScheduleRule, error) {
	if _, err := s.repo.GetByID(ctx, doctorID); err != nil {
		return nil, wrap("load doctor", err)
	}
	rules, err := s.repo.ListRules(ctx, doctorID)
	if err != nil {
		return nil, apperr.Persistence("list schedule rules", err)
	}
	return rules, nil
}

type RuleInput struct {
	DayOfWeek int       `json:"day_of_week"`
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
}

func (s *Service) CreateRule(ctx context.Context, actor auth.Principal, doctorID uuid.UUID, in RuleInput) (*ScheduleRule, error) {
	rule := &ScheduleRule{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		DayOfWeek: in.DayOfWeek,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Active:    true,
	}
	if err := rule.validate(); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, doctorID); err != nil {
		return nil, wrap("load doctor", err)
	}
	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, wrap("create schedule rule", err)
	}
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionCreate, "doctor_schedule_rules", rule.ID))
	return rule, nil
}

func wrap(op string, err error) error {
	switch {
	case errors.Is(err, ErrDoctorNotFound), errors.Is(err, ErrLicenceTaken), errors.Is(err, ErrDuplicateRule):
		return err
	}
	return apperr.Persistence(op, err)
}
