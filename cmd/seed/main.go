package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-admin/internal/auth"
	"github.com/hackgods/hospital-admin/internal/bed"
	"github.com/hackgods/hospital-admin/internal/db"
	"github.com/hackgods/hospital-admin/internal/logging"
)

const (
	doctorCount  = 40
	patientCount = 5000
	floors       = 4
	bedsPerFloor = 20
)

var specialties = []string{
	"Cardiology",
	"Dermatology",
	"Endocrinology",
	"General Practice",
	"Neurology",
	"Obstetrics",
	"Ophthalmology",
	"Orthopedics",
	"Pediatrics",
	"Psychiatry",
}

func main() {
	_ = godotenv.Load()
	logger := logging.New(getEnv("APP_ENV", "dev"), "info", "seed")
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if _, err := db.Migrate(context.Background(), pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	gofakeit.Seed(time.Now().UnixNano())
	bg := context.Background()

	email := getEnv("SEED_ADMIN_EMAIL", "admin@hospital.local")
	if err := seedAdmin(bg, pool, email, getEnv("SEED_ADMIN_PASSWORD", "change-me-now")); err != nil {
		logger.Fatal().Err(err).Msg("seed admin")
	}
	logger.Info().Str("email", email).Msg("administrator ready")

	if err := seedDoctors(bg, pool, doctorCount, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(bg, pool, patientCount, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedBeds(bg, pool, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed beds")
	}

	logger.Info().Msg("seed complete")
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, first_name, last_name)
		VALUES ($1, $2, $3, $4, 'System', 'Administrator')
		ON CONFLICT (email) DO NOTHING
	`, uuid.New(), email, hash, string(auth.RoleAdministrator))
	return err
}

// seedDoctors gives every doctor a morning rule Monday to Friday and an
// afternoon rule on two of those days.
func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding doctors")

	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			id := uuid.New()
			minutes := []int{15, 20, 30, 45}[gofakeit.Number(0, 3)]

			_, err := tx.Exec(ctx, `
				INSERT INTO doctors (id, first_name, last_name, specialty, licence, phone, email, consultation_minutes)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, id, gofakeit.FirstName(), gofakeit.LastName(),
				specialties[gofakeit.Number(0, len(specialties)-1)],
				fmt.Sprintf("LIC-%06d", i+1), gofakeit.Phone(), gofakeit.Email(), minutes)
			if err != nil {
				return err
			}

			afternoon := map[int]bool{gofakeit.Number(1, 5): true, gofakeit.Number(1, 5): true}
			for day := 1; day <= 5; day++ {
				if err := insertRule(ctx, tx, id, day, "09:00", "13:00"); err != nil {
					return err
				}
				if afternoon[day] {
					if err := insertRule(ctx, tx, id, day, "15:00", "18:00"); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}

func insertRule(ctx context.Context, tx pgx.Tx, doctorID uuid.UUID, day int, start, end string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO doctor_schedule_rules (id, doctor_id, day_of_week, start_time, end_time)
		VALUES ($1, $2, $3, $4::time, $5::time)
	`, uuid.New(), doctorID, day, start, end)
	return err
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500
	bloodTypes := []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				birth := gofakeit.DateRange(time.Now().AddDate(-95, 0, 0), time.Now().AddDate(-1, 0, 0))
				_, err := tx.Exec(ctx, `
					INSERT INTO patients (id, national_id, first_name, last_name, birth_date, gender,
						phone, email, address, blood_type, emergency_name, emergency_phone, emergency_relationship)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
				`, uuid.New(), fmt.Sprintf("NID%08d", i+1), gofakeit.FirstName(), gofakeit.LastName(),
					birth, gofakeit.RandomString([]string{"female", "male", "other"}),
					gofakeit.Phone(), gofakeit.Email(), gofakeit.Street()+", "+gofakeit.City(),
					bloodTypes[gofakeit.Number(0, len(bloodTypes)-1)],
					gofakeit.Name(), gofakeit.Phone(), gofakeit.RandomString([]string{"spouse", "parent", "sibling", "child"}))
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		logger.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}
	return nil
}

func seedBeds(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	logger.Info().Int("count", floors*bedsPerFloor).Msg("seeding beds")

	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		for floor := 1; floor <= floors; floor++ {
			for n := 1; n <= bedsPerFloor; n++ {
				typ := bed.TypeStandard
				switch {
				case floor == 1 && n <= 6:
					typ = bed.TypeICU
				case floor == 2 && n <= 8:
					typ = bed.TypePediatric
				case floor == 3 && n <= 6:
					typ = bed.TypeMaternity
				}
				_, err := tx.Exec(ctx, `
					INSERT INTO beds (id, number, floor, type)
					VALUES ($1, $2, $3, $4)
					ON CONFLICT (number, floor) DO NOTHING
				`, uuid.New(), fmt.Sprintf("%d%02d", floor, n), floor, string(typ))
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
