package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/hospital-admin/internal/patient"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const invoiceCols = `i.id, i.number, i.patient_id, p.first_name || ' ' || p.last_name, i.appointment_id, i.concept,
	i.amount, i.tax, i.total, i.payment_status, i.payment_method, i.paid_at, i.notes, i.created_at, i.updated_at`

const invoiceFrom = ` FROM invoices i JOIN patients p ON p.id = i.patient_id`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.PatientID, &inv.PatientName, &inv.AppointmentID, &inv.Concept,
		&inv.Amount, &inv.Tax, &inv.Total, &inv.PaymentStatus, &inv.PaymentMethod, &inv.PaidAt, &inv.Notes,
		&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *PgRepository) PatientActive(ctx context.Context, patientID uuid.UUID) error {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND active = TRUE)`, patientID).Scan(&ok)
	if err != nil {
		return err
	}
	if !ok {
		return patient.ErrPatientNotFound
	}
	return nil
}

func (r *PgRepository) NextNumber(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&n)
	return n, err
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Invoice, int, error) {
	var conds []string
	var args []any
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		conds = append(conds, fmt.Sprintf("i.patient_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("i.payment_status = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM invoices i`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s%s%s ORDER BY i.created_at DESC LIMIT $%d OFFSET $%d`,
		invoiceCols, invoiceFrom, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *inv)
	}
	return out, total, rows.Err()
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceCols+invoiceFrom+` WHERE i.id = $1`, id))
}

func (r *PgRepository) Create(ctx context.Context, inv *Invoice) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO invoices (id, number, patient_id, appointment_id, concept, amount, tax, total, payment_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, inv.ID, inv.Number, inv.PatientID, inv.AppointmentID, inv.Concept, inv.Amount, inv.Tax, inv.Total,
		inv.PaymentStatus, inv.Notes).Scan(&inv.CreatedAt, &inv.UpdatedAt)
}

func (r *PgRepository) SettlePending(ctx context.Context, id uuid.UUID, status PaymentStatus, method string, at time.Time) (*Invoice, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET payment_status = $2,
		    payment_method = $3,
		    paid_at = CASE WHEN $2 = 'paid' THEN $4::timestamptz ELSE NULL END,
		    updated_at = now()
		WHERE id = $1 AND payment_status = 'pending'
	`, id, status, method, at)
	if err != nil {
		return nil, err
	}
	inv, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotPending
	}
	return inv, nil
}
