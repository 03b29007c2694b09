package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-admin/internal/apperr"
	"github.com/hackgods/hospital-admin/internal/audit"
	"github.com/hackgods/hospital-admin/internal/auth"
	"github.com/hackgods/hospital-admin/internal/doctor"
	"github.com/hackgods/hospital-admin/internal/metrics"
	"github.com/hackgods/hospital-admin/internal/patient"
	redisclient "github.com/hackgods/hospital-admin/internal/redis"
)

const (
	table       = "appointments"
	dateLayout  = "2006-01-02"
	maxDuration = 24 * 60
)

var (
	ErrAppointmentNotFound  = apperr.NotFound("appointment not found")
	ErrDoctorBooked         = apperr.Conflict("doctor already booked in that window")
	ErrScheduleBusy         = apperr.Conflict("doctor schedule is being updated, please retry")
	ErrInvalidTransition    = apperr.Conflict("invalid status transition")
	ErrNotReschedulable     = apperr.Conflict("only pending or confirmed appointments can be rescheduled")
	ErrInvalidStatus        = apperr.Validation("status must be one of pending, confirmed, cancelled, completed, no_show")
	ErrInvalidDuration      = apperr.Validation("duration_minutes must be between 1 and 1440")
	ErrMissingStartTime     = apperr.Validation("start_time is required")
	ErrInvalidAvailableDate = apperr.Validation("date must be YYYY-MM-DD")
)

type Options struct {
	// Location is the hospital wall clock used to read availability dates
	// and schedule rules.
	Location *time.Location
	// StrictTransitions enforces the status transition table.
	StrictTransitions bool
}

// Service is the appointment scheduler. Every calendar write for a doctor
// runs under the doctor's Redis lock and a transaction-scoped advisory lock.
type Service struct {
	repo   Repository
	locker redisclient.Locker
	audit  audit.Recorder
	logger zerolog.Logger
	opts   Options
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, rec audit.Recorder, logger zerolog.Logger, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		repo:   repo,
		locker: locker,
		audit:  rec,
		logger: logger.With().Str("component", "scheduler").Logger(),
		opts:   opts,
		now:    time.Now,
	}
}

func effectiveDuration(requested *int, doc *doctor.Doctor) (time.Duration, int, error) {
	if requested == nil {
		d := doc.SlotLength()
		return d, int(d / time.Minute), nil
	}
	if *requested < 1 || *requested > maxDuration {
		return 0, 0, ErrInvalidDuration
	}
	return time.Duration(*requested) * time.Minute, *requested, nil
}

// CreateAppointment books a pending appointment if the doctor has no other
// non-cancelled appointment overlapping the requested window.
func (s *Service) CreateAppointment(ctx context.Context, actor auth.Principal, in CreateInput) (*Appointment, error) {
	if in.StartTime.IsZero() {
		return nil, ErrMissingStartTime
	}
	if in.DurationMinutes != nil && (*in.DurationMinutes < 1 || *in.DurationMinutes > maxDuration) {
		metrics.IncBooking("rejected")
		return nil, ErrInvalidDuration
	}

	var created *Appointment

	err := s.locker.WithDoctorLock(ctx, in.DoctorID, func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(tx Repository) error {
			if err := tx.LockDoctor(lockCtx, in.DoctorID); err != nil {
				return err
			}
			if err := tx.PatientActive(lockCtx, in.PatientID); err != nil {
				return err
			}
			doc, err := tx.GetActiveDoctor(lockCtx, in.DoctorID)
			if err != nil {
				return err
			}

			dur, minutes, err := effectiveDuration(in.DurationMinutes, doc)
			if err != nil {
				return err
			}
			start := in.StartTime.UTC()
			end := start.Add(dur)

			clash, err := tx.FindOverlapping(lockCtx, in.DoctorID, start, end, uuid.Nil)
			if err != nil {
				return err
			}
			if len(clash) > 0 {
				return ErrDoctorBooked
			}

			appt := &Appointment{
				ID:              uuid.New(),
				PatientID:       in.PatientID,
				DoctorID:        in.DoctorID,
				StartTime:       start,
				EndTime:         end,
				DurationMinutes: minutes,
				Reason:          in.Reason,
				Status:          StatusPending,
			}
			if err := tx.Insert(lockCtx, appt); err != nil {
				return err
			}
			created = appt
			return nil
		})
	})
	if err != nil {
		metrics.IncBooking(bookingResult(err))
		return nil, s.classify("create appointment", err)
	}

	metrics.IncBooking("created")
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionCreate, table, created.ID))
	return created, nil
}

// UpdateStatus moves an appointment to newStatus. Cancelling records who
// cancelled it and why.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Principal, id uuid.UUID, newStatus Status, reason *string) (*Appointment, error) {
	if !newStatus.Valid() {
		return nil, ErrInvalidStatus
	}

	var updated *Appointment
	err := s.repo.WithTx(ctx, func(tx Repository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if s.opts.StrictTransitions && !canTransition(current.Status, newStatus) {
			return ErrInvalidTransition
		}
		if s.opts.StrictTransitions && current.Status == newStatus {
			updated = current
			return nil
		}

		// reviving a cancelled appointment must not create a double booking
		if current.Status == StatusCancelled && newStatus != StatusCancelled {
			if err := tx.LockDoctor(ctx, current.DoctorID); err != nil {
				return err
			}
			clash, err := tx.FindOverlapping(ctx, current.DoctorID, current.StartTime, current.EndTime, current.ID)
			if err != nil {
				return err
			}
			if len(clash) > 0 {
				return ErrDoctorBooked
			}
		}

		var cancelledBy *uuid.UUID
		var cancelReason *string
		if newStatus == StatusCancelled {
			cancelledBy = actor.ActorID()
			cancelReason = reason
		}
		updated, err = tx.SetStatus(ctx, id, newStatus, cancelledBy, cancelReason)
		return err
	})
	if err != nil {
		return nil, s.classify("update appointment status", err)
	}

	metrics.IncAppointmentStatus(string(newStatus))
	action := audit.ActionUpdate
	if newStatus == StatusCancelled {
		action = audit.ActionCancel
	}
	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), action, table, id))
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, actor auth.Principal, id uuid.UUID, reason *string) (*Appointment, error) {
	return s.UpdateStatus(ctx, actor, id, StatusCancelled, reason)
}

// Reschedule changes time, duration or reason of a pending or confirmed
// appointment, applying the same overlap rule as booking.
func (s *Service) Reschedule(ctx context.Context, actor auth.Principal, id uuid.UUID, in RescheduleInput) (*Appointment, error) {
	if in.DurationMinutes != nil && (*in.DurationMinutes < 1 || *in.DurationMinutes > maxDuration) {
		return nil, ErrInvalidDuration
	}

	existing, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, s.classify("load appointment", err)
	}
	doctorID := existing.DoctorID

	var updated *Appointment
	err = s.locker.WithDoctorLock(ctx, doctorID, func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(tx Repository) error {
			if err := tx.LockDoctor(lockCtx, doctorID); err != nil {
				return err
			}
			a, err := tx.GetForUpdate(lockCtx, id)
			if err != nil {
				return err
			}
			if a.Status.Terminal() {
				return ErrNotReschedulable
			}

			if in.StartTime != nil {
				a.StartTime = in.StartTime.UTC()
			}
			if in.DurationMinutes != nil {
				a.DurationMinutes = *in.DurationMinutes
			}
			if in.Reason != nil {
				a.Reason = *in.Reason
			}
			a.EndTime = a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)

			clash, err := tx.FindOverlapping(lockCtx, a.DoctorID, a.StartTime, a.EndTime, a.ID)
			if err != nil {
				return err
			}
			if len(clash) > 0 {
				return ErrDoctorBooked
			}
			if err := tx.Reschedule(lockCtx, a); err != nil {
				return err
			}
			updated = a
			return nil
		})
	})
	if err != nil {
		return nil, s.classify("reschedule appointment", err)
	}

	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionUpdate, table, id))
	return updated, nil
}

// GetAvailability lists the free slot starts for doctorID on date, a
// YYYY-MM-DD day in the hospital time zone. It only reads.
func (s *Service) GetAvailability(ctx context.Context, doctorID uuid.UUID, date string) (*Availability, error) {
	day, err := time.ParseInLocation(dateLayout, date, s.opts.Location)
	if err != nil {
		return nil, ErrInvalidAvailableDate
	}

	doc, err := s.repo.GetActiveDoctor(ctx, doctorID)
	if err != nil {
		return nil, s.classify("load doctor", err)
	}

	result := &Availability{Date: date, DoctorID: doctorID, Slots: []time.Time{}}

	rules, err := s.repo.RulesForDay(ctx, doctorID, day.Weekday())
	if err != nil {
		return nil, s.classify("load schedule rules", err)
	}
	if len(rules) == 0 {
		result.Message = "doctor has no schedule on this day"
		return result, nil
	}

	booked, err := s.repo.FindOverlapping(ctx, doctorID, day, day.AddDate(0, 0, 1), uuid.Nil)
	if err != nil {
		return nil, s.classify("load appointments", err)
	}
	busy := make([]Interval, 0, len(booked))
	for i := range booked {
		busy = append(busy, booked[i].Interval())
	}

	for _, rule := range rules {
		free := FreeSlots(rule.StartTime.On(day), rule.EndTime.On(day), doc.SlotLength(), busy)
		result.Slots = append(result.Slots, free...)
	}
	sortTimes(result.Slots)
	result.Available = true
	return result, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Detail, error) {
	d, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, s.classify("get appointment", err)
	}
	return d, nil
}

func (s *Service) ListAppointments(ctx context.Context, f ListFilter) (*Page, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	f.normalize()

	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, s.classify("list appointments", err)
	}
	return &Page{
		Appointments: items,
		Total:        total,
		Page:         f.Page,
		Limit:        f.Limit,
		TotalPages:   (total + f.Limit - 1) / f.Limit,
	}, nil
}

// MarkNoShows moves pending and confirmed appointments that ended more than
// grace ago to no_show. It is called by the worker periodically and returns
// how many appointments it changed.
func (s *Service) MarkNoShows(ctx context.Context, grace time.Duration, batch int) (int, error) {
	if batch <= 0 {
		batch = 500
	}
	overdue, err := s.repo.FindOverdue(ctx, s.now().Add(-grace), batch)
	if err != nil {
		return 0, s.classify("find overdue appointments", err)
	}

	marked := 0
	for _, appt := range overdue {
		_, err := s.UpdateStatus(ctx, auth.System, appt.ID, StatusNoShow, nil)
		if err != nil {
			// status may have moved since the scan
			if apperr.KindOf(err) == apperr.KindConflict || errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			s.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to mark no-show")
			continue
		}
		marked++
	}
	return marked, nil
}

// classify keeps domain errors intact and wraps everything else as a
// persistence failure.
func (s *Service) classify(op string, err error) error {
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrScheduleBusy
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	s.logger.Error().Err(err).Str("op", op).Msg("scheduler persistence failure")
	return apperr.Persistence(op, err)
}

func bookingResult(err error) string {
	switch {
	case errors.Is(err, ErrDoctorBooked):
		return "conflict"
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return "busy"
	case errors.Is(err, patient.ErrPatientNotFound), errors.Is(err, doctor.ErrDoctorNotFound):
		return "rejected"
	}
	return "error"
}
