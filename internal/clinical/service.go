package clinical

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-admin/internal/apperr"
	"github.com/hackgods/hospital-admin/internal/audit"
	"github.com/hackgods/hospital-admin/internal/auth"
)

const table = "clinical_records"

type Service struct {
	repo          Repository
	files         FileStore
	audit         audit.Recorder
	maxAttachment int64
}

// NewService wires records to their attachment store. maxAttachment <= 0
// means DefaultMaxAttachment.
func NewService(repo Repository, files FileStore, rec audit.Recorder, maxAttachment int64) *Service {
	if maxAttachment <= 0 {
		maxAttachment = DefaultMaxAttachment
	}
	return &Service{repo: repo, files: files, audit: rec, maxAttachment: maxAttachment}
}

func (s *Service) MaxAttachmentBytes() int64 { return s.maxAttachment }

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	records, total, err := s.repo.ListByPatient(ctx, patientID, limit, (page-1)*limit)
	if err != nil {
		return nil, apperr.Persistence("list clinical records", err)
	}
	return &Page{
		Records:    records,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, wrap("get clinical record", err)
	}
	return r, nil
}

// Create stores a record for an active patient. When the author is a doctor
// with a linked doctor profile the record is attributed to that doctor.
func (s *Service) Create(ctx context.Context, actor auth.Principal, in CreateInput) (*Record, error) {
	r := &Record{ID: uuid.New(), PatientID: in.PatientID, AppointmentID: in.AppointmentID}
	in.UpdateInput.apply(r)
	if err := r.validate(); err != nil {
		return nil, err
	}
	if err := s.repo.PatientActive(ctx, r.PatientID); err != nil {
		return nil, wrap("check patient", err)
	}

	if actor.Role == auth.RoleDoctor {
		doctorID, err := s.repo.DoctorForUser(ctx, actor.UserID)
		if err != nil {
			return nil, wrap("resolve doctor", err)
		}
		if doctorID != uuid.Nil {
			r.DoctorID = &doctorID
		}
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return nil, wrap("create clinical record", err)
	}
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionCreate, table, r.ID))
	return r, nil
}

func (s *Service) Update(ctx context.Context, actor auth.Principal, id uuid.UUID, in UpdateInput) (*Record, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, wrap("load clinical record", err)
	}
	in.apply(r)
	if err := r.validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, wrap("update clinical record", err)
	}
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionUpdate, table, id))
	return r, nil
}

func wrap(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Persistence(op, err)
}
