package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-admin/internal/appointment"
	"github.com/hackgods/hospital-admin/internal/appointment/appointmenttest"
	"github.com/hackgods/hospital-admin/internal/audit"
	redisclient "github.com/hackgods/hospital-admin/internal/redis"
)

func TestRunOnceMarksOverdueAppointments(t *testing.T) {
	repo := appointmenttest.NewMemoryRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	insert := func(end time.Time, status appointment.Status) uuid.UUID {
		a := &appointment.Appointment{
			ID:        uuid.New(),
			PatientID: uuid.New(),
			DoctorID:  uuid.New(),
			StartTime: end.Add(-30 * time.Minute),
			EndTime:   end,
			Status:    status,
		}
		require.NoError(t, repo.Insert(ctx, a))
		return a.ID
	}
	overdue := insert(now.Add(-2*time.Hour), appointment.StatusConfirmed)
	withinGrace := insert(now.Add(-5*time.Minute), appointment.StatusPending)
	done := insert(now.Add(-3*time.Hour), appointment.StatusCompleted)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	svc := appointment.NewService(repo, redisclient.NoopLocker{}, audit.Nop{}, logger, appointment.Options{
		Location:          time.UTC,
		StrictTransitions: true,
	})

	runOnce(ctx, svc, 15*time.Minute, logger)

	status := func(id uuid.UUID) appointment.Status {
		a, err := repo.GetForUpdate(ctx, id)
		require.NoError(t, err)
		return a.Status
	}
	assert.Equal(t, appointment.StatusNoShow, status(overdue))
	assert.Equal(t, appointment.StatusPending, status(withinGrace))
	assert.Equal(t, appointment.StatusCompleted, status(done))
	assert.Contains(t, buf.String(), `"marked":1`)
}
