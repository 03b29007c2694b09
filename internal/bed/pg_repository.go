package bed

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

const bedCols = `b.id, b.number, b.floor, b.type, b.description, b.state, b.current_patient_id,
	COALESCE(p.first_name || ' ' || p.last_name, ''), b.assigned_at, b.released_at, b.created_at, b.updated_at`

const bedFrom = ` FROM beds b LEFT JOIN patients p ON p.id = b.current_patient_id`

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	err := row.Scan(&b.ID, &b.Number, &b.Floor, &b.Type, &b.Description, &b.State, &b.CurrentPatientID,
		&b.PatientName, &b.AssignedAt, &b.ReleasedAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBedNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *PgRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(r.q.QueryRow(ctx, `SELECT `+bedCols+bedFrom+` WHERE b.id = $1 FOR UPDATE OF b`, id))
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(r.q.QueryRow(ctx, `SELECT `+bedCols+bedFrom+` WHERE b.id = $1`, id))
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Bed, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.State != "" {
		add("b.state = $%d", f.State)
	}
	if f.Type != "" {
		add("b.type = $%d", f.Type)
	}
	if f.Floor != nil {
		add("b.floor = $%d", *f.Floor)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := r.q.Query(ctx, `SELECT `+bedCols+bedFrom+where+` ORDER BY b.floor, b.number`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Bed{}
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *PgRepository) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := r.q.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE state = 'available'),
		       count(*) FILTER (WHERE state = 'occupied'),
		       count(*) FILTER (WHERE state = 'cleaning'),
		       count(*) FILTER (WHERE state = 'maintenance')
		FROM beds
	`).Scan(&s.Total, &s.Available, &s.Occupied, &s.Cleaning, &s.Maintenance)
	return s, err
}

func (r *PgRepository) Create(ctx context.Context, b *Bed) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO beds (id, number, floor, type, description, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, b.ID, b.Number, b.Floor, b.Type, b.Description, b.State).Scan(&b.CreatedAt, &b.UpdatedAt)
	if apperr.IsUniqueViolation(err) {
		return ErrDuplicateBed
	}
	return err
}

func (r *PgRepository) Save(ctx context.Context, b *Bed) error {
	err := r.q.QueryRow(ctx, `
		UPDATE beds
		SET number = $2, floor = $3, type = $4, description = $5, state = $6,
		    current_patient_id = $7, assigned_at = $8, released_at = $9, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, b.ID, b.Number, b.Floor, b.Type, b.Description, b.State, b.CurrentPatientID, b.AssignedAt, b.ReleasedAt).
		Scan(&b.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrBedNotFound
	case apperr.IsUniqueViolation(err):
		return ErrDuplicateBed
	}
	return err
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM bed_occupancy WHERE bed_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, `DELETE FROM beds WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBedNotFound
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

func (r *PgRepository) OpenStay(ctx context.Context, rec *OccupancyRecord) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO bed_occupancy (id, bed_id, patient_id, entered_at, reason)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.BedID, rec.PatientID, rec.EnteredAt, rec.Reason)
	if apperr.IsUniqueViolation(err) {
		return ErrBedNotAvailable
	}
	return err
}

func (r *PgRepository) CloseStay(ctx context.Context, bedID, patientID uuid.UUID, exitedAt time.Time, reason *string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE bed_occupancy
		SET exited_at = $3, reason = COALESCE($4, reason)
		WHERE bed_id = $1 AND patient_id = $2 AND exited_at IS NULL
	`, bedID, patientID, exitedAt, reason)
	return err
}

const stayCols = `o.id, o.bed_id, o.patient_id, p.first_name || ' ' || p.last_name, o.entered_at, o.exited_at, o.reason`

func scanStay(row pgx.Row, extra ...any) (*OccupancyRecord, error) {
	var o OccupancyRecord
	dest := append([]any{&o.ID, &o.BedID, &o.PatientID, &o.PatientName, &o.EnteredAt, &o.ExitedAt, &o.Reason}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PgRepository) History(ctx context.Context, bedID uuid.UUID, limit int) ([]OccupancyRecord, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+stayCols+`
		FROM bed_occupancy o
		JOIN patients p ON p.id = o.patient_id
		WHERE o.bed_id = $1
		ORDER BY o.entered_at DESC
		LIMIT $2
	`, bedID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []OccupancyRecord{}
	for rows.Next() {
		o, err := scanStay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *PgRepository) Ledger(ctx context.Context, from, to time.Time) ([]LedgerEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+stayCols+`, b.number, b.floor, b.type
		FROM bed_occupancy o
		JOIN patients p ON p.id = o.patient_id
		JOIN beds b ON b.id = o.bed_id
		WHERE o.entered_at < $2
		  AND (o.exited_at IS NULL OR o.exited_at >= $1)
		ORDER BY o.entered_at, b.floor, b.number
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		o, err := scanStay(rows, &e.BedNumber, &e.Floor, &e.BedType)
		if err != nil {
			return nil, err
		}
		e.OccupancyRecord = *o
		out = append(out, e)
	}
	return out, rows.Err()
}
