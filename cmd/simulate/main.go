package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-admin/internal/db"
	"github.com/hackgods/hospital-admin/internal/logging"
)

type SimConfig struct {
	APIBaseURL    string
	Email         string
	Password      string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	StatusRatio   float64
	BedRatio      float64
	ReadRatio     float64
	PatientLimit  int
	DaysAhead     int
	PostgresDSN   string
	TimeZone      *time.Location
	SkipInvariant bool
}

type DataPool struct {
	Patients []uuid.UUID
	Doctors  []uuid.UUID
	Beds     []uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err != nil:
		atomic.AddInt64(&om.Error, 1)
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	percentile := func(p int) time.Duration {
		idx := len(latencies) * p / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}

	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], percentile(50), percentile(95)
}

type Metrics struct {
	Booking      OperationMetrics
	StatusChange OperationMetrics
	Availability OperationMetrics
	ReadByID     OperationMetrics
	BedAssign    OperationMetrics
	BedRelease   OperationMetrics
	BedClean     OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	token   string
	logger  zerolog.Logger
	metrics Metrics
}

func main() {
	_ = godotenv.Load()
	logger := logging.New(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"), "simulate")

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("status", cfg.StatusRatio).
		Float64("beds", cfg.BedRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, int32(cfg.Workers)+2)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().
		Int("patients", len(dataPool.Patients)).
		Int("doctors", len(dataPool.Doctors)).
		Int("beds", len(dataPool.Beds)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	if err := sim.login(ctx); err != nil {
		logger.Fatal().Err(err).Msg("login")
	}

	sim.Run()
	sim.PrintReport()

	if cfg.SkipInvariant {
		return
	}
	violations, err := checkInvariants(context.Background(), pgPool)
	if err != nil {
		logger.Fatal().Err(err).Msg("invariant check")
	}
	if len(violations) > 0 {
		for _, v := range violations {
			logger.Error().Msg(v)
		}
		os.Exit(1)
	}
	logger.Info().Msg("invariants hold")
}

func loadConfig() (SimConfig, error) {
	loc, err := time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		return SimConfig{}, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:    strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Email:         getEnv("SIM_EMAIL", getEnv("SEED_ADMIN_EMAIL", "admin@hospital.local")),
		Password:      getEnv("SIM_PASSWORD", getEnv("SEED_ADMIN_PASSWORD", "change-me-now")),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.4),
		StatusRatio:   getFloat("SIM_STATUS_RATIO", 0.15),
		BedRatio:      getFloat("SIM_BED_RATIO", 0.2),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.25),
		PatientLimit:  getInt("SIM_PATIENT_LIMIT", 4000),
		DaysAhead:     getInt("SIM_DAYS_AHEAD", 5),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		TimeZone:      loc,
		SkipInvariant: getEnv("SIM_SKIP_INVARIANTS", "") == "true",
	}

	total := cfg.BookingRatio + cfg.StatusRatio + cfg.BedRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.StatusRatio /= total
		cfg.BedRatio /= total
		cfg.ReadRatio /= total
	}

	switch {
	case cfg.PostgresDSN == "":
		return cfg, fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	case cfg.Workers <= 0:
		return cfg, fmt.Errorf("SIM_WORKERS must be > 0")
	case cfg.Duration <= 0:
		return cfg, fmt.Errorf("SIM_DURATION must be > 0")
	case cfg.DaysAhead <= 0:
		return cfg, fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}
	return cfg, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dp := &DataPool{}
	var err error

	if dp.Patients, err = loadIDs(ctx, pool, `SELECT id FROM patients WHERE active LIMIT $1`, cfg.PatientLimit); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if dp.Doctors, err = loadIDs(ctx, pool, `
		SELECT DISTINCT d.id FROM doctors d
		JOIN doctor_schedule_rules r ON r.doctor_id = d.id AND r.active
		WHERE d.active
	`); err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	if dp.Beds, err = loadIDs(ctx, pool, `SELECT id FROM beds`); err != nil {
		return nil, fmt.Errorf("load beds: %w", err)
	}

	if len(dp.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dp.Doctors) == 0 {
		return nil, fmt.Errorf("no scheduled doctors loaded")
	}
	return dp, nil
}

func (s *Simulator) login(ctx context.Context) error {
	status, body, err := s.call(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    s.config.Email,
		"password": s.config.Password,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("login returned %d: %s", status, body)
	}
	var res struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return err
	}
	s.token = res.Token
	return nil
}

// call sends one request and returns the status and body.
func (s *Simulator) call(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, err
}

func (s *Simulator) timed(ctx context.Context, om *OperationMetrics, method, path string, payload any) (int, []byte) {
	start := time.Now()
	status, body, err := s.call(ctx, method, path, payload)
	if ctx.Err() != nil {
		return 0, nil
	}
	om.Record(time.Since(start), status, err)
	return status, body
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	c := s.config

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < c.BookingRatio:
			s.doBooking(ctx, rng)
		case r < c.BookingRatio+c.StatusRatio:
			s.doStatusChange(ctx, rng)
		case r < c.BookingRatio+c.StatusRatio+c.BedRatio:
			s.doBedCycle(ctx, rng)
		default:
			if rng.Intn(2) == 0 {
				s.doAvailability(ctx, rng)
			} else {
				s.doReadByID(ctx, rng)
			}
		}
	}
}

// randomWeekday picks a Monday to Friday date within DaysAhead days.
func (s *Simulator) randomWeekday(rng *rand.Rand) time.Time {
	today := time.Now().In(s.config.TimeZone)
	for {
		d := today.AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead+2))
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.config.TimeZone)
		}
	}
}

// doBooking aims at the seeded 09:00 to 13:00 window on a quarter hour so
// workers collide often.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	day := s.randomWeekday(rng)
	start := day.Add(9*time.Hour + time.Duration(rng.Intn(16))*15*time.Minute)

	status, body := s.timed(ctx, &s.metrics.Booking, http.MethodPost, "/api/appointments", map[string]any{
		"patient_id": s.pool.Patients[rng.Intn(len(s.pool.Patients))],
		"doctor_id":  s.pool.Doctors[rng.Intn(len(s.pool.Doctors))],
		"start_time": start.Format(time.RFC3339),
		"reason":     "simulated visit",
	})
	if status != http.StatusCreated {
		return
	}
	var appt struct {
		ID uuid.UUID `json:"id"`
	}
	if json.Unmarshal(body, &appt) == nil && appt.ID != uuid.Nil {
		s.pool.AddAppointment(appt.ID)
	}
}

func (s *Simulator) doStatusChange(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	path := "/api/appointments/" + id.String()

	if rng.Intn(4) == 0 {
		s.timed(ctx, &s.metrics.StatusChange, http.MethodDelete, path, map[string]string{"reason": "simulated cancellation"})
		return
	}
	next := []string{"confirmed", "confirmed", "completed"}[rng.Intn(3)]
	s.timed(ctx, &s.metrics.StatusChange, http.MethodPatch, path+"/status", map[string]string{"status": next})
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	date := s.randomWeekday(rng).Format("2006-01-02")
	s.timed(ctx, &s.metrics.Availability, http.MethodGet,
		fmt.Sprintf("/api/appointments/availability?doctor_id=%s&date=%s", doctorID, date), nil)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	s.timed(ctx, &s.metrics.ReadByID, http.MethodGet, "/api/appointments/"+id.String(), nil)
}

// doBedCycle drives one bed through assign, release and cleaning. Several
// workers fight over the same beds, so conflicts are expected.
func (s *Simulator) doBedCycle(ctx context.Context, rng *rand.Rand) {
	if len(s.pool.Beds) == 0 {
		return
	}
	path := "/api/beds/" + s.pool.Beds[rng.Intn(len(s.pool.Beds))].String()

	switch rng.Intn(3) {
	case 0:
		s.timed(ctx, &s.metrics.BedAssign, http.MethodPost, path+"/assign", map[string]any{
			"patient_id": s.pool.Patients[rng.Intn(len(s.pool.Patients))],
			"reason":     "simulated admission",
		})
	case 1:
		s.timed(ctx, &s.metrics.BedRelease, http.MethodPost, path+"/release", nil)
	default:
		s.timed(ctx, &s.metrics.BedClean, http.MethodPost, path+"/available", nil)
	}
}

// checkInvariants returns one message per violated rule.
func checkInvariants(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	checks := []struct {
		name  string
		query string
	}{
		{"overlapping non-cancelled appointments", `
			SELECT count(*) FROM appointments a
			JOIN appointments b ON a.doctor_id = b.doctor_id AND a.id < b.id
			WHERE a.status <> 'cancelled' AND b.status <> 'cancelled'
			  AND a.start_time < b.end_time AND b.start_time < a.end_time`},
		{"beds whose state disagrees with their patient", `
			SELECT count(*) FROM beds
			WHERE (state = 'occupied') <> (current_patient_id IS NOT NULL)`},
		{"beds with more than one open stay", `
			SELECT count(*) FROM (
				SELECT bed_id FROM bed_occupancy WHERE exited_at IS NULL
				GROUP BY bed_id HAVING count(*) > 1
			) t`},
		{"occupied beds without a matching open stay", `
			SELECT count(*) FROM beds b
			WHERE b.state = 'occupied' AND NOT EXISTS (
				SELECT 1 FROM bed_occupancy o
				WHERE o.bed_id = b.id AND o.patient_id = b.current_patient_id AND o.exited_at IS NULL
			)`},
		{"patients occupying more than one bed", `
			SELECT count(*) FROM (
				SELECT current_patient_id FROM beds WHERE current_patient_id IS NOT NULL
				GROUP BY current_patient_id HAVING count(*) > 1
			) t`},
	}

	var violations []string
	for _, c := range checks {
		var n int
		if err := pool.QueryRow(ctx, c.query).Scan(&n); err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
		if n > 0 {
			violations = append(violations, fmt.Sprintf("%d %s", n, c.name))
		}
	}
	return violations, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Status change", &s.metrics.StatusChange)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Bed assign", &s.metrics.BedAssign)
	printOperationReport("Bed release", &s.metrics.BedRelease)
	printOperationReport("Bed cleaned", &s.metrics.BedClean)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
