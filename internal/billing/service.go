package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-admin/internal/apperr"
	"github.com/hackgods/hospital-admin/internal/audit"
	"github.com/hackgods/hospital-admin/internal/auth"
)

const table = "invoices"

type Service struct {
	repo  Repository
	audit audit.Recorder
	now   func() time.Time
}

func NewService(repo Repository, rec audit.Recorder) *Service {
	return &Service{repo: repo, audit: rec, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) List(ctx context.Context, f ListFilter) (*Page, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	f.normalize()
	invoices, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, apperr.Persistence("list invoices", err)
	}
	return &Page{Invoices: invoices, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, wrap("get invoice", err)
	}
	return inv, nil
}

// Create issues a pending invoice numbered from the database sequence.
// Total is amount plus tax.
func (s *Service) Create(ctx context.Context, actor auth.Principal, in CreateInput) (*Invoice, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.repo.PatientActive(ctx, in.PatientID); err != nil {
		return nil, wrap("check patient", err)
	}
	seq, err := s.repo.NextNumber(ctx)
	if err != nil {
		return nil, wrap("next invoice number", err)
	}

	amount, tax := cents(in.Amount), cents(in.Tax)
	inv := &Invoice{
		ID:            uuid.New(),
		Number:        formatNumber(seq),
		PatientID:     in.PatientID,
		AppointmentID: in.AppointmentID,
		Concept:       in.Concept,
		Amount:        amount,
		Tax:           tax,
		Total:         cents(amount + tax),
		PaymentStatus: StatusPending,
		Notes:         in.Notes,
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, wrap("create invoice", err)
	}
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionCreate, table, inv.ID))
	return inv, nil
}

func (s *Service) MarkPaid(ctx context.Context, actor auth.Principal, id uuid.UUID, method string) (*Invoice, error) {
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, apperr.Validation("payment_method is required")
	}
	return s.settle(ctx, actor, id, StatusPaid, method)
}

func (s *Service) Void(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Invoice, error) {
	return s.settle(ctx, actor, id, StatusVoid, "")
}

func (s *Service) settle(ctx context.Context, actor auth.Principal, id uuid.UUID, status PaymentStatus, method string) (*Invoice, error) {
	inv, err := s.repo.SettlePending(ctx, id, status, method, s.now())
	if err != nil {
		return nil, wrap("settle invoice", err)
	}
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionUpdate, table, id))
	return inv, nil
}

func wrap(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Persistence(op, err)
}
