package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/slot"
)

// SlotDefaults fill in a generate request that leaves fields out.
type SlotDefaults struct {
	Location    *time.Location
	HorizonDays int
	DayStart    time.Duration
	DayEnd      time.Duration
	Grain       time.Duration
}

type RouterConfig struct {
	Appointments     *appointment.Service
	Slots            slot.Store
	Patients         *identity.Resolver
	SlotDefaults     SlotDefaults
	Checks           []HealthCheck
	Log              *zap.Logger
	BookingRateLimit int // per client IP per minute, 0 disables
	Env              string
	Version          string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.SlotDefaults.Location == nil {
		cfg.SlotDefaults.Location = time.UTC
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	h := &handlers{
		appointments: cfg.Appointments,
		slots:        cfg.Slots,
		patients:     cfg.Patients,
		defaults:     cfg.SlotDefaults,
		log:          cfg.Log,
	}

	r.Route("/appointments", func(r chi.Router) {
		book := http.HandlerFunc(h.bookAppointment)
		if cfg.BookingRateLimit > 0 {
			r.With(httprate.Limit(
				cfg.BookingRateLimit,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(rateLimited),
			)).Post("/", book)
		} else {
			r.Post("/", book)
		}
		r.Get("/", h.listAppointments)
		r.Get("/stats", h.appointmentStats)
		r.Get("/by-reference/{ref}", h.getAppointmentByReference)
		r.Get("/{id}", h.getAppointment)
		r.Get("/{id}/reminders", h.listReminders)
		r.Post("/{id}/cancel", h.cancelAppointment)
		r.Post("/{id}/complete", h.completeAppointment)
	})

	r.Get("/slots", h.listSlots)
	r.Post("/slots/generate", h.generateSlots)
	r.Get("/providers", h.listProviders)
	r.Get("/patients/lookup", h.lookupPatient)
	r.Get("/patients/search", h.searchPatients)

	return r
}

func rateLimited(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many booking attempts, try again in a minute", true)
}
