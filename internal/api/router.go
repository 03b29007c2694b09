package api

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-admin/internal/appointment"
	"github.com/hackgods/hospital-admin/internal/auth"
	"github.com/hackgods/hospital-admin/internal/bed"
	"github.com/hackgods/hospital-admin/internal/billing"
	"github.com/hackgods/hospital-admin/internal/clinical"
	"github.com/hackgods/hospital-admin/internal/doctor"
	"github.com/hackgods/hospital-admin/internal/metrics"
	"github.com/hackgods/hospital-admin/internal/patient"
)

type RouterConfig struct {
	Logger       zerolog.Logger
	Auth         *auth.Service
	Patients     *patient.Service
	Doctors      *doctor.Service
	Appointments *appointment.Service
	Clinical     *clinical.Service
	Billing      *billing.Service
	Beds         *bed.Service
	Health       *HealthHandler
	// Location interprets date-only query parameters.
	Location *time.Location
	// LoginRatePerMin caps login attempts per client IP. Zero disables it.
	LoginRatePerMin int
	// TrustedProxies are the peers allowed to report the client address in
	// X-Forwarded-For. Empty means the TCP peer is always the client.
	TrustedProxies []netip.Prefix
}

func NewRouter(cfg RouterConfig) http.Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(Recovery(cfg.Logger))
	r.Use(ClientIP(cfg.TrustedProxies))
	r.Use(Logger(cfg.Logger))
	r.Use(Metrics)

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	metrics.Register()
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.LoginRatePerMin > 0 {
				r.Use(RateLimitPerIP(cfg.LoginRatePerMin))
			}
			r.Post("/auth/login", loginHandler(cfg.Auth))
		})

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(cfg.Auth))
			can := RequirePermission

			r.Get("/auth/me", meHandler(cfg.Auth))
			r.With(can(auth.UsersRead)).Get("/users", listUsersHandler(cfg.Auth))
			r.With(can(auth.UsersWrite)).Post("/users", createUserHandler(cfg.Auth))

			r.Route("/patients", func(r chi.Router) {
				r.With(can(auth.PatientsRead)).Get("/", listPatientsHandler(cfg.Patients))
				r.With(can(auth.PatientsWrite)).Post("/", createPatientHandler(cfg.Patients))
				r.With(can(auth.PatientsRead)).Get("/{id}", getPatientHandler(cfg.Patients))
				r.With(can(auth.PatientsWrite)).Put("/{id}", updatePatientHandler(cfg.Patients))
				r.With(can(auth.PatientsDelete)).Delete("/{id}", deletePatientHandler(cfg.Patients))
			})

			r.Route("/doctors", func(r chi.Router) {
				r.With(can(auth.DoctorsRead)).Get("/", listDoctorsHandler(cfg.Doctors))
				r.With(can(auth.DoctorsWrite)).Post("/", createDoctorHandler(cfg.Doctors))
				r.With(can(auth.DoctorsRead)).Get("/specialties", specialtiesHandler(cfg.Doctors))
				r.With(can(auth.DoctorsRead)).Get("/{id}", getDoctorHandler(cfg.Doctors))
				r.With(can(auth.DoctorsWrite)).Put("/{id}", updateDoctorHandler(cfg.Doctors))
				r.With(can(auth.DoctorsDelete)).Delete("/{id}", deleteDoctorHandler(cfg.Doctors))
				r.With(can(auth.DoctorsRead)).Get("/{id}/schedules", listRulesHandler(cfg.Doctors))
				r.With(can(auth.DoctorsWrite)).Post("/{id}/schedules", createRuleHandler(cfg.Doctors))
			})

			r.Route("/appointments", func(r chi.Router) {
				svc := cfg.Appointments
				r.With(can(auth.AppointmentsRead)).Get("/", listAppointmentsHandler(svc, loc))
				r.With(can(auth.AppointmentsWrite)).Post("/", createAppointmentHandler(svc))
				r.With(can(auth.AppointmentsRead)).Get("/availability", availabilityHandler(svc))
				r.With(can(auth.AppointmentsRead)).Get("/{id}", getAppointmentHandler(svc))
				r.With(can(auth.AppointmentsWrite)).Put("/{id}", rescheduleAppointmentHandler(svc))
				r.With(can(auth.AppointmentsCancel)).Delete("/{id}", cancelAppointmentHandler(svc))
				r.With(can(auth.AppointmentsWrite)).Patch("/{id}/status", updateStatusHandler(svc))
			})

			r.Route("/records", func(r chi.Router) {
				r.With(can(auth.RecordsRead)).Get("/patient/{patientID}", listPatientRecordsHandler(cfg.Clinical))
				r.With(can(auth.RecordsWrite)).Post("/", createRecordHandler(cfg.Clinical))
				r.With(can(auth.RecordsRead)).Get("/{id}", getRecordHandler(cfg.Clinical))
				r.With(can(auth.RecordsWrite)).Put("/{id}", updateRecordHandler(cfg.Clinical))
				r.With(can(auth.RecordsRead)).Get("/{id}/attachments", listAttachmentsHandler(cfg.Clinical))
				r.With(can(auth.RecordsWrite)).Post("/{id}/attachments", uploadAttachmentHandler(cfg.Clinical))
				r.With(can(auth.RecordsRead)).Get("/{id}/attachments/{attachmentID}", downloadAttachmentHandler(cfg.Clinical))
				r.With(can(auth.RecordsWrite)).Delete("/{id}/attachments/{attachmentID}", deleteAttachmentHandler(cfg.Clinical))
			})

			r.Route("/invoices", func(r chi.Router) {
				r.With(can(auth.InvoicesRead)).Get("/", listInvoicesHandler(cfg.Billing))
				r.With(can(auth.InvoicesWrite)).Post("/", createInvoiceHandler(cfg.Billing))
				r.With(can(auth.InvoicesRead)).Get("/{id}", getInvoiceHandler(cfg.Billing))
				r.With(can(auth.InvoicesWrite)).Post("/{id}/pay", payInvoiceHandler(cfg.Billing))
				r.With(can(auth.InvoicesWrite)).Post("/{id}/void", voidInvoiceHandler(cfg.Billing))
			})

			r.Route("/beds", func(r chi.Router) {
				r.With(can(auth.BedsRead)).Get("/", listBedsHandler(cfg.Beds))
				r.With(can(auth.BedsWrite)).Post("/", createBedHandler(cfg.Beds))
				r.With(can(auth.BedsRead)).Get("/occupancy/export", exportOccupancyHandler(cfg.Beds, loc))
				r.With(can(auth.BedsRead)).Get("/{id}", getBedHandler(cfg.Beds))
				r.With(can(auth.BedsWrite)).Put("/{id}", updateBedHandler(cfg.Beds))
				r.With(can(auth.BedsWrite)).Delete("/{id}", deleteBedHandler(cfg.Beds))
				r.With(can(auth.BedsWrite)).Post("/{id}/assign", assignBedHandler(cfg.Beds))
				r.With(can(auth.BedsWrite)).Post("/{id}/release", releaseBedHandler(cfg.Beds))
				r.With(can(auth.BedsWrite)).Post("/{id}/available", markBedAvailableHandler(cfg.Beds))
			})
		})
	})

	return r
}
