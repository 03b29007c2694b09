package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hospital"

var (
	once sync.Once

	appointmentBookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_bookings_total",
			Help:      "Booking attempts by result (created, conflict, busy, rejected, error).",
		},
		[]string{"result"},
	)

	appointmentStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_status_changes_total",
			Help:      "Appointment status changes by target status.",
		},
		[]string{"status"},
	)

	bedTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bed_transitions_total",
			Help:      "Bed state machine transitions.",
		},
		[]string{"from", "to"},
	)

	httpRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(appointmentBookings, appointmentStatus, bedTransitions, httpRequests)
	})
}

func IncBooking(result string) {
	appointmentBookings.WithLabelValues(result).Inc()
}

func IncAppointmentStatus(status string) {
	appointmentStatus.WithLabelValues(status).Inc()
}

func IncBedTransition(from, to string) {
	bedTransitions.WithLabelValues(from, to).Inc()
}

func ObserveHTTP(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
