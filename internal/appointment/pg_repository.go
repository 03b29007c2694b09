package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/hospital-admin/internal/apperr"
	"github.com/hackgods/hospital-admin/internal/db"
	"github.com/hackgods/hospital-admin/internal/doctor"
	"github.com/hackgods/hospital-admin/internal/patient"
)

type PgRepository struct {
	pool *pgxpool.Pool
	q    db.Querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

func (r *PgRepository) WithTx(ctx context.Context, fn func(tx Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&PgRepository{pool: r.pool, q: tx})
	})
}

// Helpers

const appointmentCols = `a.id, a.patient_id, a.doctor_id, a.start_time, a.end_time, a.duration_minutes,
	a.reason, a.status, a.cancelled_by, a.cancellation_reason, a.created_at, a.updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.StartTime, &a.EndTime, &a.DurationMinutes,
		&a.Reason, &a.Status, &a.CancelledBy, &a.CancellationReason, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanDetail(row pgx.Row) (*Detail, error) {
	var d Detail
	a := &d.Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.StartTime, &a.EndTime, &a.DurationMinutes,
		&a.Reason, &a.Status, &a.CancelledBy, &a.CancellationReason, &a.CreatedAt, &a.UpdatedAt,
		&d.PatientName, &d.DoctorName, &d.Specialty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &d, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()
	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Interface methods

func (r *PgRepository) LockDoctor(ctx context.Context, doctorID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, doctorID.String())
	if err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

func (r *PgRepository) PatientActive(ctx context.Context, patientID uuid.UUID) error {
	var ok bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND active = TRUE)`, patientID).Scan(&ok)
	if err != nil {
		return err
	}
	if !ok {
		return patient.ErrPatientNotFound
	}
	return nil
}

func (r *PgRepository) GetActiveDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	return doctor.ScanDoctor(r.q.QueryRow(ctx, `SELECT `+doctor.Columns+` FROM doctors WHERE id = $1 AND active = TRUE`, id))
}

func (r *PgRepository) RulesForDay(ctx context.Context, doctorID uuid.UUID, day time.Weekday) ([]doctor.ScheduleRule, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+doctor.RuleColumns+`
		FROM doctor_schedule_rules
		WHERE doctor_id = $1 AND day_of_week = $2 AND active = TRUE
		ORDER BY start_time
	`, doctorID, int(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []doctor.ScheduleRule
	for rows.Next() {
		rule, err := doctor.ScanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

func (r *PgRepository) FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, exclude uuid.UUID) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments a
		WHERE a.doctor_id = $1
		  AND a.status <> 'cancelled'
		  AND a.start_time < $3
		  AND $2 < a.end_time
		  AND a.id <> $4
		ORDER BY a.start_time
	`, doctorID, start, end, exclude)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) Insert(ctx context.Context, a *Appointment) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, start_time, end_time, duration_minutes, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, a.ID, a.PatientID, a.DoctorID, a.StartTime, a.EndTime, a.DurationMinutes, a.Reason, a.Status).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if apperr.IsExclusionViolation(err) {
		return ErrDoctorBooked
	}
	return err
}

func (r *PgRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.q.QueryRow(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments a
		WHERE a.id = $1
		FOR UPDATE
	`, id))
}

func (r *PgRepository) SetStatus(ctx context.Context, id uuid.UUID, status Status, cancelledBy *uuid.UUID, reason *string) (*Appointment, error) {
	a, err := scanAppointment(r.q.QueryRow(ctx, `
		UPDATE appointments a
		SET status = $2,
		    cancelled_by = CASE WHEN $2 = 'cancelled' THEN $3 ELSE a.cancelled_by END,
		    cancellation_reason = CASE WHEN $2 = 'cancelled' THEN $4 ELSE a.cancellation_reason END,
		    updated_at = now()
		WHERE a.id = $1
		RETURNING `+appointmentCols, id, status, cancelledBy, reason))
	if apperr.IsExclusionViolation(err) {
		return nil, ErrDoctorBooked
	}
	return a, err
}

func (r *PgRepository) Reschedule(ctx context.Context, a *Appointment) error {
	err := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2, end_time = $3, duration_minutes = $4, reason = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, a.ID, a.StartTime, a.EndTime, a.DurationMinutes, a.Reason).Scan(&a.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrAppointmentNotFound
	case apperr.IsExclusionViolation(err):
		return ErrDoctorBooked
	}
	return err
}

const detailFrom = `
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN doctors d ON d.id = a.doctor_id`

const detailCols = appointmentCols + `,
	p.first_name || ' ' || p.last_name, d.first_name || ' ' || d.last_name, d.specialty`

func (r *PgRepository) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return scanDetail(r.q.QueryRow(ctx, `SELECT `+detailCols+detailFrom+` WHERE a.id = $1`, id))
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Detail, int, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.DoctorID != nil {
		add("a.doctor_id = $%d", *f.DoctorID)
	}
	if f.PatientID != nil {
		add("a.patient_id = $%d", *f.PatientID)
	}
	if f.Status != "" {
		add("a.status = $%d", f.Status)
	}
	if f.From != nil {
		add("a.start_time >= $%d", *f.From)
	}
	if f.To != nil {
		add("a.start_time < $%d", *f.To)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT count(*)`+detailFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset())
	rows, err := r.q.Query(ctx, fmt.Sprintf(`SELECT %s%s%s ORDER BY a.start_time DESC LIMIT $%d OFFSET $%d`,
		detailCols, detailFrom, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Detail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

func (r *PgRepository) FindOverdue(ctx context.Context, cutoff time.Time, limit int) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments a
		WHERE a.status IN ('pending', 'confirmed')
		  AND a.end_time < $1
		ORDER BY a.end_time
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}
