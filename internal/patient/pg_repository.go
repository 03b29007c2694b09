package patient

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/hospital-admin/internal/apperr"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const patientCols = `id, national_id, first_name, last_name, birth_date, gender, phone, email, address,
	blood_type, allergies, emergency_name, emergency_phone, emergency_relationship, active, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.NationalID, &p.FirstName, &p.LastName, &p.BirthDate, &p.Gender, &p.Phone,
		&p.Email, &p.Address, &p.BloodType, &p.Allergies, &p.EmergencyContact.Name,
		&p.EmergencyContact.Phone, &p.EmergencyContact.Relationship, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Patient, int, error) {
	where := `WHERE active = TRUE`
	args := []any{}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += ` AND (first_name ILIKE $1 OR last_name ILIKE $1 OR national_id ILIKE $1 OR phone ILIKE $1)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM patients `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset())
	rows, err := r.pool.Query(ctx, `SELECT `+patientCols+` FROM patients `+where+
		` ORDER BY last_name, first_name LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1 AND active = TRUE`, id))
}

func (r *PgRepository) Create(ctx context.Context, p *Patient) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, national_id, first_name, last_name, birth_date, gender, phone, email, address,
			blood_type, allergies, emergency_name, emergency_phone, emergency_relationship)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING active, created_at, updated_at
	`, p.ID, p.NationalID, p.FirstName, p.LastName, p.BirthDate, p.Gender, p.Phone, p.Email, p.Address,
		p.BloodType, p.Allergies, p.EmergencyContact.Name, p.EmergencyContact.Phone,
		p.EmergencyContact.Relationship).Scan(&p.Active, &p.CreatedAt, &p.UpdatedAt)
	if apperr.IsUniqueViolation(err) {
		return ErrNationalIDTaken
	}
	return err
}

func (r *PgRepository) Update(ctx context.Context, p *Patient) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE patients
		SET national_id = $2, first_name = $3, last_name = $4, birth_date = $5, gender = $6, phone = $7,
		    email = $8, address = $9, blood_type = $10, allergies = $11, emergency_name = $12,
		    emergency_phone = $13, emergency_relationship = $14, updated_at = now()
		WHERE id = $1 AND active = TRUE
		RETURNING updated_at
	`, p.ID, p.NationalID, p.FirstName, p.LastName, p.BirthDate, p.Gender, p.Phone, p.Email, p.Address,
		p.BloodType, p.Allergies, p.EmergencyContact.Name, p.EmergencyContact.Phone,
		p.EmergencyContact.Relationship).Scan(&p.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrPatientNotFound
	case apperr.IsUniqueViolation(err):
		return ErrNationalIDTaken
	}
	return err
}

func (r *PgRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE patients SET active = FALSE, updated_at = now() WHERE id = $1 AND active = TRUE`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}
