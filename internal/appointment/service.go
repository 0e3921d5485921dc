package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/notify"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/reminder"
	"github.com/hackgods/clinic-booking/internal/slot"
)

// Policy holds the booking rules that are configuration rather than code.
type Policy struct {
	NewPatientDuration time.Duration
	ReturningDuration  time.Duration
	Grain              time.Duration
	Location           *time.Location
}

// Units is the number of slots a visit of duration d occupies.
func (p Policy) Units(d time.Duration) int {
	if p.Grain <= 0 || d <= p.Grain {
		return 1
	}
	return int((d + p.Grain - 1) / p.Grain)
}

type Option func(*Service)

// WithLocker guards each booking with a cross-process slot lock.
func WithLocker(l redisclient.Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	repo      Repository
	slots     slot.Store
	patients  *identity.Resolver
	reminders *reminder.Scheduler
	notifier  notify.Notifier
	locker    redisclient.Locker
	policy    Policy
	log       *zap.Logger
	now       func() time.Time
}

func NewService(
	repo Repository,
	slots slot.Store,
	patients *identity.Resolver,
	reminders *reminder.Scheduler,
	notifier notify.Notifier,
	policy Policy,
	log *zap.Logger,
	opts ...Option,
) *Service {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	s := &Service{
		repo:      repo,
		slots:     slots,
		patients:  patients,
		reminders: reminders,
		notifier:  notifier,
		policy:    policy,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book validates the request, resolves the patient, reserves the slot run
// and records the appointment. On any storage failure after the reservation
// the slots are released and ErrStorage is returned. Reminders and
// confirmations are best effort and never fail a booking.
func (s *Service) Book(ctx context.Context, req Request) (*Booking, error) {
	started := time.Now()
	defer func() { metrics.BookingDuration.Observe(time.Since(started).Seconds()) }()

	in, err := s.validate(ctx, req)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			metrics.BookingsTotal.WithLabelValues("invalid").Inc()
		} else {
			metrics.BookingsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	b, patientType, err := s.attempt(ctx, in)
	if errors.Is(err, identity.ErrPatientExists) {
		// A concurrent first booking registered the same person. Resolving
		// again finds that record and books as a returning patient.
		s.log.Info("patient registered concurrently, booking again as returning",
			zap.String("slot_id", in.anchor.ID.String()))
		b, patientType, err = s.attempt(ctx, in)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotUnavailable):
			metrics.BookingsTotal.WithLabelValues("unavailable").Inc()
		default:
			metrics.BookingsTotal.WithLabelValues("error").Inc()
		}
		s.log.Info("booking failed",
			zap.String("slot_id", in.anchor.ID.String()),
			zap.String("patient_type", string(patientType)),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.BookingsTotal.WithLabelValues("confirmed").Inc()
	s.log.Info("appointment booked",
		zap.String("appointment_id", b.ID.String()),
		zap.String("reference", b.Reference),
		zap.String("patient_id", b.PatientID.String()),
		zap.String("patient_type", string(b.PatientType)),
		zap.String("match", string(b.Match)),
		zap.Time("starts_at", b.StartsAt),
		zap.Duration("duration", b.Duration),
	)

	s.afterBooking(ctx, b)
	return b, nil
}

// attempt resolves the patient and books under the slot lock.
func (s *Service) attempt(ctx context.Context, in *checked) (*Booking, PatientType, error) {
	res := s.patients.ResolveDate(ctx, in.req.FullName, in.dateOfBirth)

	b := &Booking{Provider: in.provider, Match: res.Match}
	patientID := uuid.New()
	patientType := PatientNew
	duration := s.policy.NewPatientDuration
	if res.Existing() {
		patientID = res.Patient.ID
		patientType = PatientReturning
		duration = s.policy.ReturningDuration
	}

	err := s.withLock(ctx, in.anchor.ID, func(ctx context.Context) error {
		return s.reserveAndRecord(ctx, in, res, b, patientID, patientType, duration)
	})
	return b, patientType, err
}

// withLock runs fn under the Redis slot lock when one is configured. If
// Redis itself is unreachable the store's own atomicity still holds, so the
// booking goes ahead unlocked.
func (s *Service) withLock(ctx context.Context, slotID uuid.UUID, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	ran := false
	err := s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		ran = true
		return fn(lockCtx)
	})
	switch {
	case ran:
		return err
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return fmt.Errorf("%w: %w", ErrSlotUnavailable, err)
	case err != nil:
		s.log.Warn("slot lock unavailable, booking without it", zap.Error(err))
		return fn(ctx)
	}
	return nil
}

func (s *Service) reserveAndRecord(
	ctx context.Context,
	in *checked,
	res identity.Resolution,
	b *Booking,
	patientID uuid.UUID,
	patientType PatientType,
	duration time.Duration,
) error {
	units := s.policy.Units(duration)

	held, err := s.slots.ReserveRun(ctx, in.anchor.ID, patientID, units)
	if err != nil {
		switch {
		case errors.Is(err, slot.ErrAlreadyReserved), errors.Is(err, slot.ErrRunUnavailable):
			return fmt.Errorf("%w: %w", ErrSlotUnavailable, err)
		case errors.Is(err, slot.ErrSlotNotFound):
			return err
		default:
			return storageError("reserve slots", err)
		}
	}

	now := s.now()
	slotIDs := make([]uuid.UUID, len(held))
	for i := range held {
		slotIDs[i] = held[i].ID
	}

	appt := &Appointment{
		ID:          uuid.New(),
		Reference:   s.reference(now),
		PatientID:   patientID,
		ProviderID:  in.provider.ID,
		SlotID:      held[0].ID,
		SlotIDs:     slotIDs,
		StartsAt:    held[0].StartsAt,
		Duration:    duration,
		Status:      StatusConfirmed,
		PatientType: patientType,
		Reason:      in.req.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, appt); err != nil {
		s.compensate(ctx, nil, patientID, slotIDs)
		return storageError("create appointment", err)
	}

	var patient *identity.Patient
	if patientType == PatientNew {
		patient, err = s.patients.Register(ctx, identity.Patient{
			ID:          patientID,
			FullName:    in.req.FullName,
			DateOfBirth: in.dateOfBirth,
			Phone:       in.req.Phone,
			Email:       in.req.Email,
			Insurance: identity.Insurance{
				Provider:    in.req.Insurance.Provider,
				MemberID:    in.req.Insurance.MemberID,
				GroupNumber: in.req.Insurance.GroupNumber,
			},
			VisitHistory: []time.Time{appt.StartsAt},
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	} else {
		patient, err = s.patients.RecordVisit(ctx, res.Patient.ID, appt.StartsAt)
	}
	if err != nil {
		s.compensate(ctx, &appt.ID, patientID, slotIDs)
		return storageError("update patient", err)
	}

	b.Appointment = *appt
	b.Patient = patient
	return nil
}

// compensate undoes a partial booking. It runs even if ctx was cancelled.
func (s *Service) compensate(ctx context.Context, appointmentID *uuid.UUID, patientID uuid.UUID, slotIDs []uuid.UUID) {
	ctx = context.WithoutCancel(ctx)

	if appointmentID != nil {
		if err := s.repo.Delete(ctx, *appointmentID); err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			s.log.Error("compensation: delete appointment failed",
				zap.String("appointment_id", appointmentID.String()),
				zap.Error(err),
			)
		}
	}

	if err := s.slots.Release(ctx, patientID, slotIDs...); err != nil {
		s.log.Error("compensation: release slots failed",
			zap.String("patient_id", patientID.String()),
			zap.Error(err),
		)
		return
	}
	metrics.SlotsReleased.WithLabelValues("compensation").Add(float64(len(slotIDs)))
}

func (s *Service) afterBooking(ctx context.Context, b *Booking) {
	contact := notify.Contact{
		Name:  b.Patient.FullName,
		Email: b.Patient.Email,
		Phone: b.Patient.Phone,
	}
	payload := s.payload(b)

	jobs, err := s.reminders.Schedule(ctx, reminder.Target{
		AppointmentID: b.ID,
		StartsAt:      b.StartsAt,
		Contact:       contact,
		Payload:       payload,
	})
	if err != nil {
		s.log.Warn("reminders not scheduled", zap.String("appointment_id", b.ID.String()), zap.Error(err))
	}
	b.Reminders = jobs

	for _, req := range notify.Requests(contact, notify.TemplateConfirmation, payload, s.now()) {
		status := "ok"
		if err := s.notifier.Notify(ctx, req); err != nil {
			status = "error"
			s.log.Warn("confirmation not accepted",
				zap.String("appointment_id", b.ID.String()),
				zap.String("channel", string(req.Channel)),
				zap.Error(err),
			)
		}
		metrics.NotificationsSent.WithLabelValues(string(req.Channel), string(req.Template), status).Inc()
	}
}

func (s *Service) payload(b *Booking) map[string]string {
	start := b.StartsAt.In(s.policy.Location)
	p := map[string]string{
		"appointment_id": b.ID.String(),
		"reference":      b.Reference,
		"date":           start.Format("Monday, January 2, 2006"),
		"time":           start.Format("3:04 PM"),
		"duration":       fmt.Sprintf("%d minutes", int(b.Duration/time.Minute)),
		"patient_type":   string(b.PatientType),
	}
	if b.Provider != nil {
		p["provider"] = b.Provider.Name
		p["specialty"] = b.Provider.Specialty
	}
	return p
}

// reference builds codes like APT20261019A1B2C3D4.
func (s *Service) reference(now time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "APT" + now.In(s.policy.Location).Format("20060102") + strings.ToUpper(hex[:8])
}

// Cancel moves a confirmed appointment to cancelled, frees its slots and
// drops reminders that have not gone out yet.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	updated, err := s.transition(ctx, id, StatusCancelled)
	if err != nil {
		return nil, err
	}

	if err := s.slots.Release(ctx, updated.PatientID, updated.SlotIDs...); err != nil {
		// The slots are still held, so the appointment goes back to confirmed
		// and the cancel can be retried.
		if _, rerr := s.repo.UpdateStatus(context.WithoutCancel(ctx), id, StatusCancelled, StatusConfirmed); rerr != nil {
			s.log.Error("cancelled appointment kept its slots",
				zap.String("appointment_id", id.String()),
				zap.NamedError("restore_error", rerr),
				zap.Error(err),
			)
		}
		return nil, storageError("release slots", err)
	}
	metrics.SlotsReleased.WithLabelValues("cancelled").Add(float64(len(updated.SlotIDs)))

	if err := s.reminders.CancelForAppointment(ctx, id); err != nil {
		s.log.Warn("pending reminders not removed", zap.String("appointment_id", id.String()), zap.Error(err))
	}

	s.log.Info("appointment cancelled", zap.String("appointment_id", id.String()))
	return updated, nil
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	updated, err := s.transition(ctx, id, StatusCompleted)
	if err != nil {
		return nil, err
	}
	s.log.Info("appointment completed", zap.String("appointment_id", id.String()))
	return updated, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !appt.CanTransitionTo(to) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, appt.Status, to)
	if err != nil {
		// someone else moved it between the read and the update
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) GetByReference(ctx context.Context, ref string) (*Appointment, error) {
	appt, err := s.repo.GetByReference(ctx, strings.ToUpper(strings.TrimSpace(ref)))
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment by reference: %w", err)
	}
	return appt, nil
}

// Reminders lists the reminder jobs of an appointment, dispatched ones included.
func (s *Service) Reminders(ctx context.Context, id uuid.UUID) ([]reminder.Job, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	jobs, err := s.reminders.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return jobs, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Appointment, error) {
	appts, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// Stats summarizes the appointments matching f.
func (s *Service) Stats(ctx context.Context, f Filter) (*Stats, error) {
	appts, err := s.List(ctx, f)
	if err != nil {
		return nil, err
	}

	st := &Stats{
		Total:         len(appts),
		ByStatus:      make(map[Status]int),
		ByPatientType: make(map[PatientType]int),
		ByProvider:    make(map[string]int),
		ByInsurance:   make(map[string]int),
	}

	providers := make(map[uuid.UUID]string)
	insurers := make(map[uuid.UUID]string)

	for i := range appts {
		a := &appts[i]
		st.ByStatus[a.Status]++
		st.ByPatientType[a.PatientType]++

		name, ok := providers[a.ProviderID]
		if !ok {
			name = a.ProviderID.String()
			if p, err := s.slots.GetProvider(ctx, a.ProviderID); err == nil {
				name = p.Name
			}
			providers[a.ProviderID] = name
		}
		st.ByProvider[name]++

		insurer, ok := insurers[a.PatientID]
		if !ok {
			insurer = "unknown"
			if p, err := s.patients.Get(ctx, a.PatientID); err == nil && p.Insurance.Provider != "" {
				insurer = p.Insurance.Provider
			}
			insurers[a.PatientID] = insurer
		}
		st.ByInsurance[insurer]++
	}

	return st, nil
}

// AvailableSlots lists open slots for the intake form.
func (s *Service) AvailableSlots(ctx context.Context, f slot.Filter) ([]slot.Slot, error) {
	return s.slots.Query(ctx, f)
}
