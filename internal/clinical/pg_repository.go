package clinical

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/hospital-admin/internal/apperr"
	"github.com/hackgods/hospital-admin/internal/patient"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const recordCols = `r.id, r.patient_id, r.appointment_id, r.doctor_id,
	COALESCE(d.first_name || ' ' || d.last_name, ''), r.recorded_at, r.chief_complaint, r.diagnosis,
	r.treatment, r.prescription, r.notes, r.weight_kg, r.temperature_c, r.systolic, r.diastolic,
	r.created_at, r.updated_at`

const recordFrom = ` FROM clinical_records r LEFT JOIN doctors d ON d.id = r.doctor_id`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.PatientID, &r.AppointmentID, &r.DoctorID, &r.DoctorName, &r.RecordedAt,
		&r.ChiefComplaint, &r.Diagnosis, &r.Treatment, &r.Prescription, &r.Notes,
		&r.WeightKg, &r.TemperatureC, &r.Systolic, &r.Diastolic, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (p *PgRepository) PatientActive(ctx context.Context, patientID uuid.UUID) error {
	var ok bool
	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND active = TRUE)`, patientID).Scan(&ok)
	if err != nil {
		return err
	}
	if !ok {
		return patient.ErrPatientNotFound
	}
	return nil
}

func (p *PgRepository) DoctorForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := p.pool.QueryRow(ctx, `SELECT id FROM doctors WHERE user_id = $1 AND active = TRUE`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, nil
	}
	return id, err
}

func (p *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Record, int, error) {
	var total int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM clinical_records WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := p.pool.Query(ctx, `SELECT `+recordCols+recordFrom+`
		WHERE r.patient_id = $1
		ORDER BY r.recorded_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

func (p *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(p.pool.QueryRow(ctx, `SELECT `+recordCols+recordFrom+` WHERE r.id = $1`, id))
}

func (p *PgRepository) Create(ctx context.Context, r *Record) error {
	return p.pool.QueryRow(ctx, `
		INSERT INTO clinical_records (id, patient_id, appointment_id, doctor_id, chief_complaint, diagnosis,
			treatment, prescription, notes, weight_kg, temperature_c, systolic, diastolic)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING recorded_at, created_at, updated_at
	`, r.ID, r.PatientID, r.AppointmentID, r.DoctorID, r.ChiefComplaint, r.Diagnosis, r.Treatment,
		r.Prescription, r.Notes, r.WeightKg, r.TemperatureC, r.Systolic, r.Diastolic).
		Scan(&r.RecordedAt, &r.CreatedAt, &r.UpdatedAt)
}

func (p *PgRepository) Update(ctx context.Context, r *Record) error {
	err := p.pool.QueryRow(ctx, `
		UPDATE clinical_records
		SET chief_complaint = $2, diagnosis = $3, treatment = $4, prescription = $5, notes = $6,
		    weight_kg = $7, temperature_c = $8, systolic = $9, diastolic = $10, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, r.ID, r.ChiefComplaint, r.Diagnosis, r.Treatment, r.Prescription, r.Notes,
		r.WeightKg, r.TemperatureC, r.Systolic, r.Diastolic).Scan(&r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRecordNotFound
	}
	return err
}

const attachmentCols = `id, record_id, kind, name, original_name, content_type, size_bytes, sha256,
	storage_key, uploaded_by, created_at`

func scanAttachment(row pgx.Row) (*Attachment, error) {
	var a Attachment
	err := row.Scan(&a.ID, &a.RecordID, &a.Kind, &a.Name, &a.OriginalName, &a.ContentType,
		&a.SizeBytes, &a.SHA256, &a.StorageKey, &a.UploadedBy, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttachmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (p *PgRepository) CreateAttachment(ctx context.Context, a *Attachment) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO clinical_record_attachments (id, record_id, kind, name, original_name, content_type,
			size_bytes, sha256, storage_key, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, a.ID, a.RecordID, string(a.Kind), a.Name, a.OriginalName, a.ContentType, a.SizeBytes, a.SHA256,
		a.StorageKey, a.UploadedBy).Scan(&a.CreatedAt)
	if apperr.IsForeignKeyViolation(err) {
		return ErrRecordNotFound
	}
	return err
}

func (p *PgRepository) ListAttachments(ctx context.Context, recordID uuid.UUID) ([]Attachment, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+attachmentCols+`
		FROM clinical_record_attachments
		WHERE record_id = $1
		ORDER BY created_at, id`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (p *PgRepository) GetAttachment(ctx context.Context, recordID, id uuid.UUID) (*Attachment, error) {
	return scanAttachment(p.pool.QueryRow(ctx, `SELECT `+attachmentCols+`
		FROM clinical_record_attachments
		WHERE id = $1 AND record_id = $2`, id, recordID))
}

func (p *PgRepository) DeleteAttachment(ctx context.Context, recordID, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM clinical_record_attachments WHERE id = $1 AND record_id = $2`, id, recordID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAttachmentNotFound
	}
	return nil
}
