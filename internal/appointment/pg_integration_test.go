//go:build integration

package appointment

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-admin/internal/audit"
	"github.com/hackgods/hospital-admin/internal/auth"
	"github.com/hackgods/hospital-admin/internal/db"
	redisclient "github.com/hackgods/hospital-admin/internal/redis"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := db.ConnectPostgres(ctx, dsn, 20)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = db.Migrate(ctx, pool)
	require.NoError(t, err)
	return pool
}

func seedDoctorAndPatient(t *testing.T, pool *pgxpool.Pool) (doctorID, patientID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	doctorID, patientID = uuid.New(), uuid.New()

	_, err := pool.Exec(ctx, `
		INSERT INTO patients (id, national_id, first_name, last_name, birth_date)
		VALUES ($1, $2, 'Ana', 'Lopez', '1980-01-01')
	`, patientID, "IT-"+patientID.String()[:8])
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		INSERT INTO doctors (id, first_name, last_name, specialty, licence, consultation_minutes)
		VALUES ($1, 'Gregory', 'House', 'diagnostics', $2, 30)
	`, doctorID, "IT-"+doctorID.String()[:8])
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		INSERT INTO doctor_schedule_rules (id, doctor_id, day_of_week, start_time, end_time)
		VALUES ($1, $2, 1, '09:00', '12:00')
	`, uuid.New(), doctorID)
	require.NoError(t, err)
	return doctorID, patientID
}

func TestPgConcurrentBookingsHaveOneWinner(t *testing.T) {
	pool := testPool(t)
	doctorID, patientID := seedDoctorAndPatient(t, pool)

	svc := NewService(NewPgRepository(pool), redisclient.NoopLocker{}, audit.Nop{}, zerolog.Nop(), Options{
		Location:          time.UTC,
		StrictTransitions: true,
	})
	clerk := auth.Principal{UserID: uuid.New(), Role: auth.RoleReception}
	start := time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateAppointment(context.Background(), clerk, CreateInput{
				PatientID: patientID,
				DoctorID:  doctorID,
				StartTime: start.Add(time.Duration(i%3) * 10 * time.Minute),
				Reason:    fmt.Sprintf("attempt %d", i),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrDoctorBooked)
	}
	assert.Equal(t, 1, wins)

	var overlaps int
	require.NoError(t, pool.QueryRow(context.Background(), `
		SELECT count(*) FROM appointments a
		JOIN appointments b ON a.doctor_id = b.doctor_id AND a.id < b.id
		WHERE a.doctor_id = $1 AND a.status <> 'cancelled' AND b.status <> 'cancelled'
		  AND a.start_time < b.end_time AND b.start_time < a.end_time
	`, doctorID).Scan(&overlaps))
	assert.Zero(t, overlaps)
}

func TestPgAvailabilityExcludesBooked(t *testing.T) {
	pool := testPool(t)
	doctorID, patientID := seedDoctorAndPatient(t, pool)

	svc := NewService(NewPgRepository(pool), redisclient.NoopLocker{}, audit.Nop{}, zerolog.Nop(), Options{Location: time.UTC})
	ctx := context.Background()

	_, err := svc.CreateAppointment(ctx, auth.System, CreateInput{
		PatientID: patientID,
		DoctorID:  doctorID,
		StartTime: time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	avail, err := svc.GetAvailability(ctx, doctorID, "2030-03-04")
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Len(t, avail.Slots, 5)
	assert.NotContains(t, avail.Slots, time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC))
}
