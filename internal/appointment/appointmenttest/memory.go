// Package appointmenttest provides an in-memory appointment.Repository for
// tests in this module.
package appointmenttest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-admin/internal/appointment"
	"github.com/hackgods/hospital-admin/internal/doctor"
	"github.com/hackgods/hospital-admin/internal/patient"
)

// MemoryRepository keeps appointments in process. Transactions are
// serialised and roll back by restoring a snapshot, which gives the same
// observable behaviour as the advisory-locked Postgres path for a single
// instance.
type MemoryRepository struct {
	txMu sync.Mutex

	mu           sync.RWMutex
	patients     map[uuid.UUID]string
	doctors      map[uuid.UUID]doctor.Doctor
	rules        []doctor.ScheduleRule
	appointments map[uuid.UUID]appointment.Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:     map[uuid.UUID]string{},
		doctors:      map[uuid.UUID]doctor.Doctor{},
		appointments: map[uuid.UUID]appointment.Appointment{},
	}
}

func (r *MemoryRepository) AddPatient(id uuid.UUID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[id] = name
}

func (r *MemoryRepository) AddDoctor(d doctor.Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doctors[d.ID] = d
}

func (r *MemoryRepository) AddRule(rule doctor.ScheduleRule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule)
}

// Count returns the number of stored appointments, cancelled included.
func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.appointments)
}

func (r *MemoryRepository) WithTx(ctx context.Context, fn func(tx appointment.Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.RLock()
	snapshot := make(map[uuid.UUID]appointment.Appointment, len(r.appointments))
	for k, v := range r.appointments {
		snapshot[k] = v
	}
	r.mu.RUnlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.appointments = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

// LockDoctor is covered by the transaction mutex.
func (r *MemoryRepository) LockDoctor(ctx context.Context, _ uuid.UUID) error {
	return ctx.Err()
}

func (r *MemoryRepository) PatientActive(_ context.Context, patientID uuid.UUID) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.patients[patientID]; !ok {
		return patient.ErrPatientNotFound
	}
	return nil
}

func (r *MemoryRepository) GetActiveDoctor(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.doctors[id]
	if !ok || !d.Active {
		return nil, doctor.ErrDoctorNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) RulesForDay(_ context.Context, doctorID uuid.UUID, day time.Weekday) ([]doctor.ScheduleRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []doctor.ScheduleRule
	for _, rule := range r.rules {
		if rule.DoctorID == doctorID && rule.DayOfWeek == int(day) && rule.Active {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (r *MemoryRepository) FindOverlapping(_ context.Context, doctorID uuid.UUID, start, end time.Time, exclude uuid.UUID) ([]appointment.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	window := appointment.Interval{Start: start, End: end}
	var out []appointment.Appointment
	for _, a := range r.appointments {
		if a.DoctorID != doctorID || a.Status == appointment.StatusCancelled || a.ID == exclude {
			continue
		}
		if a.Interval().Overlaps(window) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *MemoryRepository) Insert(_ context.Context, a *appointment.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) GetForUpdate(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) SetStatus(_ context.Context, id uuid.UUID, status appointment.Status, cancelledBy *uuid.UUID, reason *string) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	a.Status = status
	if status == appointment.StatusCancelled {
		a.CancelledBy = cancelledBy
		a.CancellationReason = reason
	}
	a.UpdatedAt = time.Now().UTC()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) Reschedule(_ context.Context, a *appointment.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[a.ID]; !ok {
		return appointment.ErrAppointmentNotFound
	}
	a.UpdatedAt = time.Now().UTC()
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) detail(a appointment.Appointment) appointment.Detail {
	d := r.doctors[a.DoctorID]
	return appointment.Detail{
		Appointment: a,
		PatientName: r.patients[a.PatientID],
		DoctorName:  d.FirstName + " " + d.LastName,
		Specialty:   d.Specialty,
	}
}

func (r *MemoryRepository) GetDetail(_ context.Context, id uuid.UUID) (*appointment.Detail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	d := r.detail(a)
	return &d, nil
}

func (r *MemoryRepository) List(_ context.Context, f appointment.ListFilter) ([]appointment.Detail, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []appointment.Detail
	for _, a := range r.appointments {
		switch {
		case f.DoctorID != nil && a.DoctorID != *f.DoctorID,
			f.PatientID != nil && a.PatientID != *f.PatientID,
			f.Status != "" && a.Status != f.Status,
			f.From != nil && a.StartTime.Before(*f.From),
			f.To != nil && !a.StartTime.Before(*f.To):
			continue
		}
		all = append(all, r.detail(a))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartTime.After(all[j].StartTime) })

	total := len(all)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *MemoryRepository) FindOverdue(_ context.Context, cutoff time.Time, limit int) ([]appointment.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []appointment.Appointment
	for _, a := range r.appointments {
		if (a.Status == appointment.StatusPending || a.Status == appointment.StatusConfirmed) && a.EndTime.Before(cutoff) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
