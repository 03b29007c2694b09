package appointment_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-admin/internal/apperr"
	"github.com/hackgods/hospital-admin/internal/appointment"
	"github.com/hackgods/hospital-admin/internal/appointment/appointmenttest"
	"github.com/hackgods/hospital-admin/internal/audit"
	"github.com/hackgods/hospital-admin/internal/auth"
	"github.com/hackgods/hospital-admin/internal/doctor"
	"github.com/hackgods/hospital-admin/internal/patient"
	redisclient "github.com/hackgods/hospital-admin/internal/redis"
)

type recorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recorder) Record(ev audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Action)
	}
	return out
}

type busyLocker struct{}

func (busyLocker) WithDoctorLock(context.Context, uuid.UUID, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

type fixture struct {
	svc       *appointment.Service
	repo      *appointmenttest.MemoryRepository
	rec       *recorder
	patientID uuid.UUID
	doctorID  uuid.UUID
	clerk     auth.Principal
}

// monday is 2025-03-03, a Monday.
var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func newFixture(t *testing.T, strict bool) *fixture {
	t.Helper()

	repo := appointmenttest.NewMemoryRepository()
	f := &fixture{
		repo:      repo,
		rec:       &recorder{},
		patientID: uuid.New(),
		doctorID:  uuid.New(),
		clerk:     auth.Principal{UserID: uuid.New(), Email: "desk@hospital.test", Role: auth.RoleReception},
	}
	repo.AddPatient(f.patientID, "Ana Lopez")
	repo.AddDoctor(doctor.Doctor{
		ID:                  f.doctorID,
		FirstName:           "Gregory",
		LastName:            "House",
		Specialty:           "diagnostics",
		ConsultationMinutes: 30,
		Active:              true,
	})
	repo.AddRule(doctor.ScheduleRule{
		ID:        uuid.New(),
		DoctorID:  f.doctorID,
		DayOfWeek: int(time.Monday),
		StartTime: 9 * 60,
		EndTime:   12 * 60,
		Active:    true,
	})

	f.svc = appointment.NewService(repo, redisclient.NoopLocker{}, f.rec, zerolog.Nop(), appointment.Options{
		Location:          time.UTC,
		StrictTransitions: strict,
	})
	appointment.SetClock(f.svc, func() time.Time { return at(18, 0) })
	return f
}

func (f *fixture) book(t *testing.T, start time.Time) (*appointment.Appointment, error) {
	t.Helper()
	return f.svc.CreateAppointment(context.Background(), f.clerk, appointment.CreateInput{
		PatientID: f.patientID,
		DoctorID:  f.doctorID,
		StartTime: start,
		Reason:    "follow-up",
	})
}

func TestOverlaps(t *testing.T) {
	a := appointment.Interval{Start: at(9, 0), End: at(9, 30)}

	assert.True(t, a.Overlaps(appointment.Interval{Start: at(9, 15), End: at(9, 45)}))
	assert.True(t, a.Overlaps(appointment.Interval{Start: at(8, 0), End: at(10, 0)}))
	assert.False(t, a.Overlaps(appointment.Interval{Start: at(9, 30), End: at(10, 0)}), "back-to-back is not a clash")
	assert.False(t, a.Overlaps(appointment.Interval{Start: at(8, 30), End: at(9, 0)}))
}

func TestFreeSlots(t *testing.T) {
	busy := []appointment.Interval{{Start: at(9, 30), End: at(10, 15)}}
	slots := appointment.FreeSlots(at(9, 0), at(11, 0), 30*time.Minute, busy)

	assert.Equal(t, []time.Time{at(9, 0), at(10, 30)}, slots)
}

func TestFreeSlotsDropsTrailingPartialSlot(t *testing.T) {
	slots := appointment.FreeSlots(at(9, 0), at(10, 10), 30*time.Minute, nil)
	assert.Equal(t, []time.Time{at(9, 0), at(9, 30)}, slots)

	assert.Empty(t, appointment.FreeSlots(at(9, 0), at(10, 0), 0, nil))
}

func TestBookingScenario(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	avail, err := f.svc.GetAvailability(ctx, f.doctorID, "2025-03-03")
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Len(t, avail.Slots, 6)

	first, err := f.book(t, at(9, 0))
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusPending, first.Status)
	assert.Equal(t, 30, first.DurationMinutes)
	assert.Equal(t, at(9, 30), first.EndTime)

	_, err = f.book(t, at(9, 15))
	require.ErrorIs(t, err, appointment.ErrDoctorBooked)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = f.book(t, at(9, 30))
	require.NoError(t, err)

	avail, err = f.svc.GetAvailability(ctx, f.doctorID, "2025-03-03")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{at(10, 0), at(10, 30), at(11, 0), at(11, 30)}, avail.Slots)
	assert.Equal(t, 2, f.repo.Count())
	assert.Equal(t, []string{audit.ActionCreate, audit.ActionCreate}, f.rec.actions())
}

func TestCreateRejectsUnknownPatient(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.svc.CreateAppointment(context.Background(), f.clerk, appointment.CreateInput{
		PatientID: uuid.New(),
		DoctorID:  f.doctorID,
		StartTime: at(9, 0),
	})
	require.ErrorIs(t, err, patient.ErrPatientNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Zero(t, f.repo.Count())
	assert.Empty(t, f.rec.actions())
}

func TestCreateRejectsUnknownDoctor(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.svc.CreateAppointment(context.Background(), f.clerk, appointment.CreateInput{
		PatientID: f.patientID,
		DoctorID:  uuid.New(),
		StartTime: at(9, 0),
	})
	require.ErrorIs(t, err, doctor.ErrDoctorNotFound)
	assert.Zero(t, f.repo.Count())
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.CreateAppointment(ctx, f.clerk, appointment.CreateInput{PatientID: f.patientID, DoctorID: f.doctorID})
	require.ErrorIs(t, err, appointment.ErrMissingStartTime)

	zero := 0
	_, err = f.svc.CreateAppointment(ctx, f.clerk, appointment.CreateInput{
		PatientID: f.patientID, DoctorID: f.doctorID, StartTime: at(9, 0), DurationMinutes: &zero,
	})
	require.ErrorIs(t, err, appointment.ErrInvalidDuration)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateUsesRequestedDuration(t *testing.T) {
	f := newFixture(t, true)

	long := 90
	a, err := f.svc.CreateAppointment(context.Background(), f.clerk, appointment.CreateInput{
		PatientID: f.patientID, DoctorID: f.doctorID, StartTime: at(9, 0), DurationMinutes: &long,
	})
	require.NoError(t, err)
	assert.Equal(t, at(10, 30), a.EndTime)

	_, err = f.book(t, at(10, 0))
	require.ErrorIs(t, err, appointment.ErrDoctorBooked)
}

func TestCreateWhenLockBusy(t *testing.T) {
	f := newFixture(t, true)
	appointment.SetLocker(f.svc, busyLocker{})

	_, err := f.book(t, at(9, 0))
	require.ErrorIs(t, err, appointment.ErrScheduleBusy)
	assert.Zero(t, f.repo.Count())
}

func TestConcurrentBookingsHaveOneWinner(t *testing.T) {
	f := newFixture(t, true)

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		clashes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.book(t, at(10, 0))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, appointment.ErrDoctorBooked):
				clashes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, clashes)
	assert.Equal(t, 1, f.repo.Count())
}

func TestAvailabilityIsReadOnlyAndStable(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, err := f.book(t, at(11, 0))
	require.NoError(t, err)

	a1, err := f.svc.GetAvailability(ctx, f.doctorID, "2025-03-03")
	require.NoError(t, err)
	a2, err := f.svc.GetAvailability(ctx, f.doctorID, "2025-03-03")
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.Equal(t, 1, f.repo.Count())
}

func TestAvailabilityWithoutRule(t *testing.T) {
	f := newFixture(t, true)

	// Tuesday
	avail, err := f.svc.GetAvailability(context.Background(), f.doctorID, "2025-03-04")
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Empty(t, avail.Slots)
	assert.NotEmpty(t, avail.Message)
}

func TestAvailabilityFullyBookedStillAvailable(t *testing.T) {
	f := newFixture(t, true)
	for h := 9; h < 12; h++ {
		_, err := f.book(t, at(h, 0))
		require.NoError(t, err)
		_, err = f.book(t, at(h, 30))
		require.NoError(t, err)
	}

	avail, err := f.svc.GetAvailability(context.Background(), f.doctorID, "2025-03-03")
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Empty(t, avail.Slots)
}

func TestAvailabilityWalksEveryRule(t *testing.T) {
	f := newFixture(t, true)
	f.repo.AddRule(doctor.ScheduleRule{
		ID: uuid.New(), DoctorID: f.doctorID, DayOfWeek: int(time.Monday),
		StartTime: 14 * 60, EndTime: 15 * 60, Active: true,
	})

	avail, err := f.svc.GetAvailability(context.Background(), f.doctorID, "2025-03-03")
	require.NoError(t, err)
	require.Len(t, avail.Slots, 8)
	assert.Equal(t, at(14, 30), avail.Slots[7])
}

func TestAvailabilityUsesHospitalTimeZone(t *testing.T) {
	f := newFixture(t, true)
	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	appointment.SetLocation(f.svc, madrid)

	avail, err := f.svc.GetAvailability(context.Background(), f.doctorID, "2025-03-03")
	require.NoError(t, err)
	require.NotEmpty(t, avail.Slots)
	// 09:00 in Madrid is 08:00 UTC in winter
	assert.True(t, avail.Slots[0].Equal(at(8, 0)))
}

func TestAvailabilityErrors(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.GetAvailability(ctx, f.doctorID, "03/03/2025")
	require.ErrorIs(t, err, appointment.ErrInvalidAvailableDate)

	_, err = f.svc.GetAvailability(ctx, uuid.New(), "2025-03-03")
	require.ErrorIs(t, err, doctor.ErrDoctorNotFound)
}

func TestStrictTransitions(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	a, err := f.book(t, at(9, 0))
	require.NoError(t, err)

	got, err := f.svc.UpdateStatus(ctx, f.clerk, a.ID, appointment.StatusConfirmed, nil)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusConfirmed, got.Status)

	_, err = f.svc.UpdateStatus(ctx, f.clerk, a.ID, appointment.StatusPending, nil)
	require.ErrorIs(t, err, appointment.ErrInvalidTransition)

	got, err = f.svc.UpdateStatus(ctx, f.clerk, a.ID, appointment.StatusConfirmed, nil)
	require.NoError(t, err, "same status is a no-op")
	assert.Equal(t, appointment.StatusConfirmed, got.Status)

	_, err = f.svc.UpdateStatus(ctx, f.clerk, a.ID, appointment.StatusCompleted, nil)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, f.clerk, a.ID, appointment.StatusCancelled, nil)
	require.ErrorIs(t, err, appointment.ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, f.clerk, a.ID, appointment.Status("archived"), nil)
	require.ErrorIs(t, err, appointment.ErrInvalidStatus)

	_, err = f.svc.UpdateStatus(ctx, f.clerk, uuid.New(), appointment.StatusConfirmed, nil)
	require.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
}

func TestLenientTransitionsReviveCancelled(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	a, err := f.book(t, at(9, 0))
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, f.clerk, a.ID, nil)
	require.NoError(t, err)

	got, err := f.svc.UpdateStatus(ctx, f.clerk, a.ID, appointment.StatusPending, nil)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusPending, got.Status)

	// cancel again, let someone else take the slot, then revival must fail
	_, err = f.svc.Cancel(ctx, f.clerk, a.ID, nil)
	require.NoError(t, err)
	_, err = f.book(t, at(9, 0))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, f.clerk, a.ID, appointment.StatusConfirmed, nil)
	require.ErrorIs(t, err, appointment.ErrDoctorBooked)
}

func TestCancelRecordsActorAndFreesSlot(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	a, err := f.book(t, at(9, 0))
	require.NoError(t, err)

	reason := "patient called"
	got, err := f.svc.Cancel(ctx, f.clerk, a.ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCancelled, got.Status)
	require.NotNil(t, got.CancelledBy)
	assert.Equal(t, f.clerk.UserID, *got.CancelledBy)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, reason, *got.CancellationReason)

	_, err = f.book(t, at(9, 0))
	require.NoError(t, err, "cancelled appointments do not block the slot")
	assert.Contains(t, f.rec.actions(), audit.ActionCancel)
}

func TestCancelBySystemLeavesActorEmpty(t *testing.T) {
	f := newFixture(t, true)
	a, err := f.book(t, at(9, 0))
	require.NoError(t, err)

	got, err := f.svc.Cancel(context.Background(), auth.System, a.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, got.CancelledBy)
}

func TestReschedule(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	a, err := f.book(t, at(9, 0))
	require.NoError(t, err)
	_, err = f.book(t, at(10, 0))
	require.NoError(t, err)

	clash := at(9, 45)
	_, err = f.svc.Reschedule(ctx, f.clerk, a.ID, appointment.RescheduleInput{StartTime: &clash})
	require.ErrorIs(t, err, appointment.ErrDoctorBooked)

	// moving inside its own window does not clash with itself
	shifted := at(9, 15)
	got, err := f.svc.Reschedule(ctx, f.clerk, a.ID, appointment.RescheduleInput{StartTime: &shifted})
	require.NoError(t, err)
	assert.Equal(t, at(9, 45), got.EndTime)

	longer := 45
	note := "needs more time"
	got, err = f.svc.Reschedule(ctx, f.clerk, a.ID, appointment.RescheduleInput{DurationMinutes: &longer, Reason: &note})
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), got.EndTime)
	assert.Equal(t, note, got.Reason)

	_, err = f.svc.Cancel(ctx, f.clerk, a.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.Reschedule(ctx, f.clerk, a.ID, appointment.RescheduleInput{StartTime: &shifted})
	require.ErrorIs(t, err, appointment.ErrNotReschedulable)
}

func TestListAppointments(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	for _, m := range []int{0, 30} {
		_, err := f.book(t, at(9, m))
		require.NoError(t, err)
	}

	page, err := f.svc.ListAppointments(ctx, appointment.ListFilter{DoctorID: &f.doctorID, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Appointments, 1)
	assert.Equal(t, at(9, 30), page.Appointments[0].StartTime)
	assert.Equal(t, "Gregory House", page.Appointments[0].DoctorName)
	assert.Equal(t, "Ana Lopez", page.Appointments[0].PatientName)

	page, err = f.svc.ListAppointments(ctx, appointment.ListFilter{Status: appointment.StatusConfirmed})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	_, err = f.svc.ListAppointments(ctx, appointment.ListFilter{Status: "later"})
	require.ErrorIs(t, err, appointment.ErrInvalidStatus)
}

func TestMarkNoShows(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	old, err := f.book(t, at(9, 0))
	require.NoError(t, err)
	done, err := f.book(t, at(9, 30))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, f.clerk, done.ID, appointment.StatusCompleted, nil)
	require.NoError(t, err)

	// still inside the grace window at 18:00
	recent, err := f.book(t, at(11, 30))
	require.NoError(t, err)

	n, err := f.svc.MarkNoShows(ctx, 7*time.Hour, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetAppointment(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusNoShow, got.Status)

	got, err = f.svc.GetAppointment(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusPending, got.Status)

	n, err = f.svc.MarkNoShows(ctx, 7*time.Hour, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}
