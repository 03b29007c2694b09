package doctor

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/hospital-admin/internal/apperr"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Columns lists the doctors columns in the order ScanDoctor expects.
const Columns = `id, user_id, first_name, last_name, specialty, licence, phone, email,
	consultation_minutes, active, created_at, updated_at`

func ScanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.FirstName, &d.LastName, &d.Specialty, &d.Licence, &d.Phone,
		&d.Email, &d.ConsultationMinutes, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

// RuleColumns lists the doctor_schedule_rules columns ScanRule expects.
const RuleColumns = `id, doctor_id, day_of_week, start_time, end_time, active`

func ScanRule(row pgx.Row) (*ScheduleRule, error) {
	var r ScheduleRule
	var start, end pgtype.Time
	if err := row.Scan(&r.ID, &r.DoctorID, &r.DayOfWeek, &start, &end, &r.Active); err != nil {
		return nil, err
	}
	r.StartTime = fromPgTime(start)
	r.EndTime = fromPgTime(end)
	return &r, nil
}

func fromPgTime(t pgtype.Time) TimeOfDay {
	return TimeOfDay(t.Microseconds / 60_000_000)
}

func toPgTime(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * 60_000_000, Valid: true}
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+Columns+`
		FROM doctors
		WHERE active = TRUE AND ($1 = '' OR specialty = $1)
		ORDER BY last_name, first_name
	`, f.Specialty)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Doctor{}
	for rows.Next() {
		d, err := ScanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return ScanDoctor(r.pool.QueryRow(ctx, `SELECT `+Columns+` FROM doctors WHERE id = $1 AND active = TRUE`, id))
}

func (r *PgRepository) Create(ctx context.Context, d *Doctor) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO doctors (id, user_id, first_name, last_name, specialty, licence, phone, email, consultation_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING active, created_at, updated_at
	`, d.ID, d.UserID, d.FirstName, d.LastName, d.Specialty, d.Licence, d.Phone, d.Email,
		d.ConsultationMinutes).Scan(&d.Active, &d.CreatedAt, &d.UpdatedAt)
	if apperr.IsUniqueViolation(err) {
		return ErrLicenceTaken
	}
	return err
}

func (r *PgRepository) Update(ctx context.Context, d *Doctor) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET user_id = $2, first_name = $3, last_name = $4, specialty = $5, licence = $6, phone = $7,
		    email = $8, consultation_minutes = $9, updated_at = now()
		WHERE id = $1 AND active = TRUE
		RETURNING updated_at
	`, d.ID, d.UserID, d.FirstName, d.LastName, d.Specialty, d.Licence, d.Phone, d.Email,
		d.ConsultationMinutes).Scan(&d.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrDoctorNotFound
	case apperr.IsUniqueViolation(err):
		return ErrLicenceTaken
	}
	return err
}

func (r *PgRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE doctors SET active = FALSE, updated_at = now() WHERE id = $1 AND active = TRUE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *PgRepository) Specialties(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT specialty FROM doctors WHERE active = TRUE ORDER BY specialty`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *PgRepository) ListRules(ctx context.Context, doctorID uuid.UUID) ([]ScheduleRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+RuleColumns+`
		FROM doctor_schedule_rules
		WHERE doctor_id = $1
		ORDER BY day_of_week, start_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ScheduleRule{}
	for rows.Next() {
		rule, err := ScanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

func (r *PgRepository) CreateRule(ctx context.Context, rule *ScheduleRule) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctor_schedule_rules (id, doctor_id, day_of_week, start_time, end_time, active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rule.ID, rule.DoctorID, rule.DayOfWeek, toPgTime(rule.StartTime), toPgTime(rule.EndTime), rule.Active)
	if apperr.IsUniqueViolation(err) {
		return ErrDuplicateRule
	}
	return err
}
