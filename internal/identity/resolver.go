package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/metrics"
)

// Resolver decides whether a requester is a known patient and owns patient
// creation and visit history.
type Resolver struct {
	store Store
	dates *DateParser
	log   *zap.Logger
}

func NewResolver(store Store, dates *DateParser, log *zap.Logger) *Resolver {
	return &Resolver{store: store, dates: dates, log: log}
}

func (r *Resolver) Dates() *DateParser {
	return r.dates
}

// Resolve looks a requester up by name and raw date of birth. It never fails:
// an unparseable date or a store error resolves to a new patient.
func (r *Resolver) Resolve(ctx context.Context, name, dob string) Resolution {
	date, err := r.dates.Parse(dob)
	if err != nil {
		r.log.Debug("dob not parseable, treating as new patient", zap.String("dob", dob), zap.Error(err))
		metrics.PatientResolutions.WithLabelValues(string(MatchNone)).Inc()
		return Resolution{Match: MatchNone}
	}
	return r.ResolveDate(ctx, name, date)
}

// ResolveDate matches in two passes over patients sharing the date of birth,
// in insertion order: exact normalized name first, then at least two shared
// name tokens. The first qualifying record of the earliest pass wins.
func (r *Resolver) ResolveDate(ctx context.Context, name string, dob time.Time) Resolution {
	res := r.match(ctx, name, dob)
	metrics.PatientResolutions.WithLabelValues(string(res.Match)).Inc()
	return res
}

func (r *Resolver) match(ctx context.Context, name string, dob time.Time) Resolution {
	want := NormalizeName(name)
	if want == "" {
		return Resolution{Match: MatchNone}
	}

	candidates, err := r.store.ListByDateOfBirth(ctx, dob)
	if err != nil {
		r.log.Warn("patient lookup failed, treating as new patient", zap.Error(err))
		return Resolution{Match: MatchNone}
	}

	normalized := make([]string, len(candidates))
	for i := range candidates {
		normalized[i] = NormalizeName(candidates[i].FullName)
		if normalized[i] == want {
			return Resolution{Patient: &candidates[i], Match: MatchExact}
		}
	}

	for i := range candidates {
		if sharedTokens(normalized[i], want) >= 2 {
			return Resolution{Patient: &candidates[i], Match: MatchPartial}
		}
	}

	return Resolution{Match: MatchNone}
}

// Register stores a new patient. VisitHistory normally holds the date of the
// booking that created the record. A zero ID is replaced with a fresh one.
// Registering someone whose normalized name and date of birth are already on
// file fails with ErrPatientExists.
func (r *Resolver) Register(ctx context.Context, p Patient) (*Patient, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.FullName = strings.TrimSpace(p.FullName)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = strings.TrimSpace(p.Phone)
	history := make([]time.Time, 0, len(p.VisitHistory))
	for _, v := range p.VisitHistory {
		history = append(history, CivilDate(v))
	}
	p.VisitHistory = history

	if err := r.store.Create(ctx, &p); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	r.log.Info("patient registered", zap.String("patient_id", p.ID.String()))
	return &p, nil
}

// RecordVisit appends a visit date to an existing patient.
func (r *Resolver) RecordVisit(ctx context.Context, id uuid.UUID, visit time.Time) (*Patient, error) {
	p, err := r.store.AppendVisit(ctx, id, visit)
	if err != nil {
		return nil, fmt.Errorf("record visit: %w", err)
	}
	return p, nil
}

func (r *Resolver) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.store.Get(ctx, id)
}

func (r *Resolver) Search(ctx context.Context, term string, limit int) ([]Patient, error) {
	if strings.TrimSpace(term) == "" {
		return nil, nil
	}
	return r.store.Search(ctx, term, limit)
}
