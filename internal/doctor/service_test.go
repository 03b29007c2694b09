package doctor

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-admin/internal/apperr"
	"github.com/hackgods/hospital-admin/internal/audit"
	"github.com/hackgods/hospital-admin/internal/auth"
)

type memRepo struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]Doctor
	rules   []ScheduleRule
}

func newMemRepo() *memRepo { return &memRepo{doctors: map[uuid.UUID]Doctor{}} }

func (m *memRepo) List(_ context.Context, f ListFilter) ([]Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Doctor{}
	for _, d := range m.doctors {
		if d.Active && (f.Specialty == "" || d.Specialty == f.Specialty) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok || !d.Active {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *memRepo) Create(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.doctors {
		if existing.Licence == d.Licence {
			return ErrLicenceTaken
		}
	}
	d.Active = true
	m.doctors[d.ID] = *d
	return nil
}

func (m *memRepo) Update(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[d.ID] = *d
	return nil
}

func (m *memRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok || !d.Active {
		return ErrDoctorNotFound
	}
	d.Active = false
	m.doctors[id] = d
	return nil
}

func (m *memRepo) Specialties(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, d := range m.doctors {
		if d.Active && !seen[d.Specialty] {
			seen[d.Specialty] = true
			out = append(out, d.Specialty)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memRepo) ListRules(_ context.Context, doctorID uuid.UUID) ([]ScheduleRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []ScheduleRule{}
	for _, r := range m.rules {
		if r.DoctorID == doctorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) CreateRule(_ context.Context, r *ScheduleRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rules {
		if existing.DoctorID == r.DoctorID && existing.DayOfWeek == r.DayOfWeek && existing.StartTime == r.StartTime {
			return ErrDuplicateRule
		}
	}
	m.rules = append(m.rules, *r)
	return nil
}

func strp(s string) *string { return &s }

func newDoctor(t *testing.T, svc *Service, licence, specialty string) *Doctor {
	t.Helper()
	d, err := svc.Create(context.Background(), auth.System, Input{
		FirstName: strp("Elena"), LastName: strp("Serra"), Specialty: strp(specialty), Licence: strp(licence),
	})
	require.NoError(t, err)
	return d
}

func TestCreateDefaultsConsultationLength(t *testing.T) {
	svc := NewService(newMemRepo(), audit.Nop{})
	d := newDoctor(t, svc, "28/12345", "Cardiology")

	assert.Equal(t, DefaultConsultationMinutes, d.ConsultationMinutes)
	assert.Equal(t, 30*time.Minute, d.SlotLength())

	_, err := svc.Create(context.Background(), auth.System, Input{
		FirstName: strp("Otro"), LastName: strp("Medico"), Specialty: strp("Cardiology"), Licence: strp("28/12345"),
	})
	assert.ErrorIs(t, err, ErrLicenceTaken)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemRepo(), audit.Nop{})
	zero := 0
	_, err := svc.Create(context.Background(), auth.System, Input{
		FirstName: strp("A"), LastName: strp("B"), Specialty: strp("ENT"), Licence: strp("x"), ConsultationMinutes: &zero,
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSpecialtiesAndDelete(t *testing.T) {
	svc := NewService(newMemRepo(), audit.Nop{})
	ctx := context.Background()
	newDoctor(t, svc, "L1", "Neurology")
	d := newDoctor(t, svc, "L2", "Cardiology")

	specs, err := svc.Specialties(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cardiology", "Neurology"}, specs)

	require.NoError(t, svc.Delete(ctx, auth.System, d.ID))
	_, err = svc.Get(ctx, d.ID)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	list, err := svc.List(ctx, ListFilter{Specialty: "Cardiology"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateRule(t *testing.T) {
	svc := NewService(newMemRepo(), audit.Nop{})
	ctx := context.Background()
	d := newDoctor(t, svc, "L3", "Dermatology")

	nine, _ := ParseTimeOfDay("09:00")
	noon, _ := ParseTimeOfDay("12:00")

	rule, err := svc.CreateRule(ctx, auth.System, d.ID, RuleInput{DayOfWeek: int(time.Monday), StartTime: nine, EndTime: noon})
	require.NoError(t, err)
	assert.True(t, rule.Active)

	_, err = svc.CreateRule(ctx, auth.System, d.ID, RuleInput{DayOfWeek: int(time.Monday), StartTime: nine, EndTime: noon})
	assert.ErrorIs(t, err, ErrDuplicateRule)

	_, err = svc.CreateRule(ctx, auth.System, d.ID, RuleInput{DayOfWeek: 7, StartTime: nine, EndTime: noon})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.CreateRule(ctx, auth.System, d.ID, RuleInput{DayOfWeek: 1, StartTime: noon, EndTime: nine})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.CreateRule(ctx, auth.System, uuid.New(), RuleInput{DayOfWeek: 2, StartTime: nine, EndTime: noon})
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	rules, err := svc.ListRules(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(570), tod)
	assert.Equal(t, "09:30", tod.String())

	withSeconds, err := ParseTimeOfDay("17:45:00")
	require.NoError(t, err)
	assert.Equal(t, "17:45", withSeconds.String())

	_, err = ParseTimeOfDay("9h")
	assert.Error(t, err)

	b, err := json.Marshal(RuleInput{DayOfWeek: 1, StartTime: tod, EndTime: withSeconds})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day_of_week":1,"start_time":"09:30","end_time":"17:45"}`, string(b))

	var back RuleInput
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, tod, back.StartTime)

	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	on := tod.On(time.Date(2025, 3, 3, 0, 0, 0, 0, madrid))
	assert.Equal(t, 9, on.Hour())
	assert.Equal(t, 30, on.Minute())
	assert.Equal(t, madrid, on.Location())
}
