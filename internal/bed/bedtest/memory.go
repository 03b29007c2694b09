// Package bedtest provides an in-memory bed.Repository for tests in this
// module.
package bedtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/hospital-admin/internal/bed"
	"github.com/hackgods/hospital-admin/internal/patient"
)

// MemoryRepository is an in-process Repository. Transactions are serialised
// and roll back by restoring a snapshot.
type MemoryRepository struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	patients map[uuid.UUID]string
	beds     map[uuid.UUID]bed.Bed
	stays    []bed.OccupancyRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients: map[uuid.UUID]string{},
		beds:     map[uuid.UUID]bed.Bed{},
	}
}

func (r *MemoryRepository) AddPatient(id uuid.UUID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[id] = name
}

// OpenStays counts ledger records without an exit time for bedID.
func (r *MemoryRepository) OpenStays(bedID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.stays {
		if s.BedID == bedID && s.ExitedAt == nil {
			n++
		}
	}
	return n
}

func (r *MemoryRepository) WithTx(ctx context.Context, fn func(tx bed.Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.RLock()
	beds := make(map[uuid.UUID]bed.Bed, len(r.beds))
	for k, v := range r.beds {
		beds[k] = v
	}
	stays := append([]bed.OccupancyRecord(nil), r.stays...)
	r.mu.RUnlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.beds, r.stays = beds, stays
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *MemoryRepository) withName(b bed.Bed) bed.Bed {
	b.PatientName = ""
	if b.CurrentPatientID != nil {
		b.PatientName = r.patients[*b.CurrentPatientID]
	}
	return b
}

func (r *MemoryRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*bed.Bed, error) {
	return r.Get(ctx, id)
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*bed.Bed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.beds[id]
	if !ok {
		return nil, bed.ErrBedNotFound
	}
	b = r.withName(b)
	return &b, nil
}

func (r *MemoryRepository) List(_ context.Context, f bed.ListFilter) ([]bed.Bed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []bed.Bed{}
	for _, b := range r.beds {
		switch {
		case f.State != "" && b.State != f.State,
			f.Type != "" && b.Type != f.Type,
			f.Floor != nil && b.Floor != *f.Floor:
			continue
		}
		out = append(out, r.withName(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Floor != out[j].Floor {
			return out[i].Floor < out[j].Floor
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (r *MemoryRepository) Summary(_ context.Context) (bed.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var s bed.Summary
	for _, b := range r.beds {
		s.Count(b.State)
	}
	return s, nil
}

func (r *MemoryRepository) duplicate(b *bed.Bed) bool {
	for _, other := range r.beds {
		if other.ID != b.ID && other.Number == b.Number && other.Floor == b.Floor {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) Create(_ context.Context, b *bed.Bed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.duplicate(b) {
		return bed.ErrDuplicateBed
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	r.beds[b.ID] = *b
	return nil
}

func (r *MemoryRepository) Save(_ context.Context, b *bed.Bed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.beds[b.ID]; !ok {
		return bed.ErrBedNotFound
	}
	if r.duplicate(b) {
		return bed.ErrDuplicateBed
	}
	b.UpdatedAt = time.Now().UTC()
	r.beds[b.ID] = *b
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.beds[id]; !ok {
		return bed.ErrBedNotFound
	}
	kept := r.stays[:0:0]
	for _, s := range r.stays {
		if s.BedID != id {
			kept = append(kept, s)
		}
	}
	r.stays = kept
	delete(r.beds, id)
	return nil
}

func (r *MemoryRepository) PatientActive(_ context.Context, patientID uuid.UUID) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.patients[patientID]; !ok {
		return patient.ErrPatientNotFound
	}
	return nil
}

func (r *MemoryRepository) OpenStay(_ context.Context, rec *bed.OccupancyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stays {
		if s.BedID == rec.BedID && s.ExitedAt == nil {
			return bed.ErrBedNotAvailable
		}
	}
	r.stays = append(r.stays, *rec)
	return nil
}

func (r *MemoryRepository) CloseStay(_ context.Context, bedID, patientID uuid.UUID, exitedAt time.Time, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.stays {
		s := &r.stays[i]
		if s.BedID == bedID && s.PatientID == patientID && s.ExitedAt == nil {
			t := exitedAt
			s.ExitedAt = &t
			if reason != nil {
				s.Reason = *reason
			}
		}
	}
	return nil
}

func (r *MemoryRepository) History(_ context.Context, bedID uuid.UUID, limit int) ([]bed.OccupancyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []bed.OccupancyRecord{}
	for _, s := range r.stays {
		if s.BedID == bedID {
			s.PatientName = r.patients[s.PatientID]
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EnteredAt.After(out[j].EnteredAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) Ledger(_ context.Context, from, to time.Time) ([]bed.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []bed.LedgerEntry{}
	for _, s := range r.stays {
		if !s.EnteredAt.Before(to) || (s.ExitedAt != nil && s.ExitedAt.Before(from)) {
			continue
		}
		b := r.beds[s.BedID]
		s.PatientName = r.patients[s.PatientID]
		out = append(out, bed.LedgerEntry{OccupancyRecord: s, BedNumber: b.Number, Floor: b.Floor, BedType: b.Type})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EnteredAt.Before(out[j].EnteredAt) })
	return out, nil
}
