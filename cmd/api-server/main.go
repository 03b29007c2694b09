package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/hospital-admin/internal/api"
	"github.com/hackgods/hospital-admin/internal/appointment"
	"github.com/hackgods/hospital-admin/internal/audit"
	"github.com/hackgods/hospital-admin/internal/auth"
	"github.com/hackgods/hospital-admin/internal/bed"
	"github.com/hackgods/hospital-admin/internal/billing"
	"github.com/hackgods/hospital-admin/internal/clinical"
	"github.com/hackgods/hospital-admin/internal/config"
	"github.com/hackgods/hospital-admin/internal/db"
	"github.com/hackgods/hospital-admin/internal/doctor"
	"github.com/hackgods/hospital-admin/internal/logging"
	"github.com/hackgods/hospital-admin/internal/patient"
	redisclient "github.com/hackgods/hospital-admin/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("prod", "info", "api-server")
		boot.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel, "api-server")
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("timezone", cfg.Location.String()).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PostgresMaxConn)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	if cfg.AutoMigrate {
		applied, err := db.Migrate(rootCtx, pgPool)
		if err != nil {
			logger.Fatal().Err(err).Msg("migration error")
		}
		logger.Info().Int("applied", applied).Msg("schema up to date")
	}

	// Redis is optional: without it bookings still serialise on the
	// Postgres advisory lock.
	var locker redisclient.Locker = redisclient.NoopLocker{}
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, using database locks only")
		} else {
			defer func() {
				if err := rdb.Close(); err != nil {
					logger.Error().Err(err).Msg("error closing redis")
				}
			}()
			locker = redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL, cfg.LockWait)
			logger.Info().Msg("connected to Redis")
		}
	}

	sink := audit.NewSink(audit.NewPgStore(pgPool), cfg.AuditBuffer, logger)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authSvc := auth.NewService(auth.NewPgUserRepository(pgPool), tokens, sink, logger)
	apptSvc := appointment.NewService(appointment.NewPgRepository(pgPool), locker, sink, logger, appointment.Options{
		Location:          cfg.Location,
		StrictTransitions: cfg.StrictStatus,
	})

	files, err := clinical.NewDiskStore(cfg.AttachmentDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.AttachmentDir).Msg("attachment store error")
	}

	health := api.NewHealthHandler(cfg.Env, version).Require("postgres", pgPool.Ping)
	if rdb != nil {
		health.Optional("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:          logger,
		Auth:            authSvc,
		Patients:        patient.NewService(patient.NewPgRepository(pgPool), sink),
		Doctors:         doctor.NewService(doctor.NewPgRepository(pgPool), sink),
		Appointments:    apptSvc,
		Clinical:        clinical.NewService(clinical.NewPgRepository(pgPool), files, sink, cfg.AttachmentMax),
		Billing:         billing.NewService(billing.NewPgRepository(pgPool), sink),
		Beds:            bed.NewService(bed.NewPgRepository(pgPool), sink, logger),
		Health:          health,
		Location:        cfg.Location,
		LoginRatePerMin: cfg.LoginRatePerMin,
		TrustedProxies:  cfg.TrustedProxies,
	})

	srv := newHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	if err := sink.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("audit sink did not drain")
	}

	logger.Info().Msg("api-server stopped")
}

// newHTTPServer leaves room in the read timeout for attachment uploads.
func newHTTPServer(cfg config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
