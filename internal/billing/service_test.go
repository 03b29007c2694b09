package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-admin/internal/apperr"
	"github.com/hackgods/hospital-admin/internal/audit"
	"github.com/hackgods/hospital-admin/internal/auth"
	"github.com/hackgods/hospital-admin/internal/patient"
)

type memRepo struct {
	patients map[uuid.UUID]bool
	seq      int64
	invoices map[uuid.UUID]Invoice
	order    []uuid.UUID
}

func newMemRepo() *memRepo {
	return &memRepo{patients: map[uuid.UUID]bool{}, invoices: map[uuid.UUID]Invoice{}}
}

func (m *memRepo) PatientActive(_ context.Context, id uuid.UUID) error {
	if !m.patients[id] {
		return patient.ErrPatientNotFound
	}
	return nil
}

func (m *memRepo) NextNumber(context.Context) (int64, error) {
	m.seq++
	return m.seq, nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]Invoice, int, error) {
	out := []Invoice{}
	for i := len(m.order) - 1; i >= 0; i-- {
		inv := m.invoices[m.order[i]]
		if f.PatientID != nil && inv.PatientID != *f.PatientID {
			continue
		}
		if f.Status != "" && inv.PaymentStatus != f.Status {
			continue
		}
		out = append(out, inv)
	}
	return out, len(out), nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	return &inv, nil
}

func (m *memRepo) Create(_ context.Context, inv *Invoice) error {
	m.invoices[inv.ID] = *inv
	m.order = append(m.order, inv.ID)
	return nil
}

func (m *memRepo) SettlePending(_ context.Context, id uuid.UUID, status PaymentStatus, method string, at time.Time) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	if inv.PaymentStatus != StatusPending {
		return nil, ErrNotPending
	}
	inv.PaymentStatus = status
	inv.PaymentMethod = method
	if status == StatusPaid {
		inv.PaidAt = &at
	}
	m.invoices[id] = inv
	return &inv, nil
}

var clerk = auth.Principal{UserID: uuid.New(), Role: auth.RoleReception}

func setup(t *testing.T) (*Service, *memRepo, uuid.UUID) {
	t.Helper()
	repo := newMemRepo()
	patientID := uuid.New()
	repo.patients[patientID] = true
	return NewService(repo, audit.Nop{}), repo, patientID
}

func TestCreateInvoice(t *testing.T) {
	svc, _, patientID := setup(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, clerk, CreateInput{PatientID: patientID, Concept: " consultation ", Amount: 99.999, Tax: 21})
	require.NoError(t, err)
	assert.Equal(t, "INV-000001", inv.Number)
	assert.Equal(t, "consultation", inv.Concept)
	assert.InDelta(t, 100.00, inv.Amount, 1e-9)
	assert.InDelta(t, 121.00, inv.Total, 1e-9)
	assert.Equal(t, StatusPending, inv.PaymentStatus)

	inv, err = svc.Create(ctx, clerk, CreateInput{PatientID: patientID, Concept: "x-ray", Amount: 0})
	require.NoError(t, err)
	assert.Equal(t, "INV-000002", inv.Number)
	assert.Zero(t, inv.Total)
}

func TestCreateInvoiceValidation(t *testing.T) {
	svc, repo, patientID := setup(t)
	ctx := context.Background()

	cases := []CreateInput{
		{Concept: "x"},
		{PatientID: patientID},
		{PatientID: patientID, Concept: "x", Amount: -1},
		{PatientID: patientID, Concept: "x", Tax: -0.5},
	}
	for _, in := range cases {
		_, err := svc.Create(ctx, clerk, in)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "%+v", in)
	}

	_, err := svc.Create(ctx, clerk, CreateInput{PatientID: uuid.New(), Concept: "x"})
	require.ErrorIs(t, err, patient.ErrPatientNotFound)
	assert.Empty(t, repo.invoices)
	assert.Zero(t, repo.seq, "no number is drawn for rejected invoices")
}

func TestPayAndVoid(t *testing.T) {
	svc, _, patientID := setup(t)
	ctx := context.Background()
	fixed := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	a, err := svc.Create(ctx, clerk, CreateInput{PatientID: patientID, Concept: "a", Amount: 10})
	require.NoError(t, err)
	b, err := svc.Create(ctx, clerk, CreateInput{PatientID: patientID, Concept: "b", Amount: 20})
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, clerk, a.ID, " ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	paid, err := svc.MarkPaid(ctx, clerk, a.ID, "card")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.PaymentStatus)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, fixed, *paid.PaidAt)

	_, err = svc.Void(ctx, clerk, a.ID)
	require.ErrorIs(t, err, ErrNotPending)

	voided, err := svc.Void(ctx, clerk, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusVoid, voided.PaymentStatus)
	assert.Nil(t, voided.PaidAt)

	_, err = svc.MarkPaid(ctx, clerk, uuid.New(), "cash")
	require.ErrorIs(t, err, ErrInvoiceNotFound)

	page, err := svc.List(ctx, ListFilter{Status: StatusPaid})
	require.NoError(t, err)
	require.Len(t, page.Invoices, 1)
	assert.Equal(t, a.ID, page.Invoices[0].ID)

	_, err = svc.List(ctx, ListFilter{Status: "overdue"})
	require.ErrorIs(t, err, ErrInvalidStatus)
}
