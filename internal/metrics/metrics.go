package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_bookings_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	BookingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clinic_booking_duration_seconds",
			Help:    "Time spent in the booking engine",
			Buckets: prometheus.DefBuckets,
		},
	)

	SlotReservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_slot_reservations_total",
			Help: "Slot reservation attempts by result",
		},
		[]string{"result"},
	)

	SlotsReleased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_slots_released_total",
			Help: "Slots returned to the pool",
		},
		[]string{"reason"},
	)

	SlotsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clinic_slots_generated_total",
			Help: "Slots created by bulk generation",
		},
	)

	PatientResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_patient_resolutions_total",
			Help: "Identity resolutions by match kind",
		},
		[]string{"match"},
	)

	RemindersScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clinic_reminders_scheduled_total",
			Help: "Reminder jobs created",
		},
	)

	RemindersDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_reminders_dispatched_total",
			Help: "Reminder jobs handed to the notifier",
		},
		[]string{"status"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_notifications_sent_total",
			Help: "Notification requests by channel and status",
		},
		[]string{"channel", "template", "status"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "code"},
	)
)
