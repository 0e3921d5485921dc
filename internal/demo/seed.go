// Package demo fills empty stores with synthetic providers, patients and a
// slot horizon so the service can be exercised without real data.
package demo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/slot"
)

var (
	defaultProviders = []slot.Provider{
		{Name: "Dr. Smith", Specialty: "General Practice"},
		{Name: "Dr. Johnson", Specialty: "Cardiology"},
		{Name: "Dr. Williams", Specialty: "Pediatrics"},
	}

	specialties = []string{
		"Dermatology", "Cardiology", "General Practice", "Orthopedics", "Endocrinology",
		"Neurology", "Pediatrics", "Psychiatry", "Ophthalmology", "ENT",
	}

	insurers = []string{
		"Blue Cross Blue Shield", "Aetna", "Cigna", "Humana",
		"United Healthcare", "Kaiser Permanente", "Medicare", "Medicaid",
	}

	memberPrefixes = []string{"ABC", "DEF", "GHI", "JKL", "MNO", "PQR", "STU", "VWX", "YZ1", "BC2"}
)

type Options struct {
	Seed      uint64 // 0 picks a random seed
	Providers int    // at least the three built-in providers are created
	Patients  int
	Horizon   slot.GenerateSpec // ProviderID is filled in per provider
	Now       time.Time
}

type Result struct {
	Providers []slot.Provider
	Patients  int
	Existing  int // patients skipped because they were already stored
	Slots     int
}

// Seed creates providers with a slot horizon each, then patients with a
// random past visit history. The built-in providers keep fixed ids and slot
// generation skips existing slots, so seeding twice does not duplicate them.
// With a fixed Seed the patients repeat too and are skipped.
func Seed(ctx context.Context, slots slot.Store, patients identity.Store, opts Options, log *zap.Logger) (*Result, error) {
	f := gofakeit.New(opts.Seed)
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	res := &Result{}

	providers := make([]slot.Provider, 0, max(opts.Providers, len(defaultProviders)))
	for _, p := range defaultProviders {
		p.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("clinic-booking/provider/"+p.Name))
		providers = append(providers, p)
	}
	for len(providers) < opts.Providers {
		providers = append(providers, slot.Provider{
			ID:        newID(f),
			Name:      "Dr. " + f.LastName(),
			Specialty: f.RandomString(specialties),
		})
	}

	for i := range providers {
		p := providers[i]
		if err := slots.AddProvider(ctx, &p); err != nil {
			return nil, fmt.Errorf("add provider %s: %w", p.Name, err)
		}
		res.Providers = append(res.Providers, p)

		spec := opts.Horizon
		spec.ProviderID = p.ID
		n, err := slots.BulkGenerate(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("generate slots for %s: %w", p.Name, err)
		}
		res.Slots += n
	}
	log.Info("providers seeded", zap.Int("providers", len(res.Providers)), zap.Int("slots", res.Slots))

	for i := 0; i < opts.Patients; i++ {
		p := fakePatient(f, opts.Now)
		p.VisitHistory = fakeVisits(f, opts.Now)
		err := patients.Create(ctx, &p)
		if errors.Is(err, identity.ErrPatientExists) {
			res.Existing++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create patient: %w", err)
		}
		res.Patients++

		if res.Patients%500 == 0 {
			log.Info("patients seeded", zap.Int("done", res.Patients), zap.Int("total", opts.Patients))
		}
	}
	log.Info("demo data seeded", zap.Int("patients", res.Patients), zap.Int("already_present", res.Existing))

	return res, nil
}

func fakePatient(f *gofakeit.Faker, now time.Time) identity.Patient {
	dob := f.DateRange(now.AddDate(-85, 0, 0), now.AddDate(-18, 0, 0))
	return identity.Patient{
		ID:          newID(f),
		FullName:    f.Name(),
		DateOfBirth: identity.CivilDate(dob),
		Phone:       f.Phone(),
		Email:       strings.ToLower(f.Email()),
		Insurance: identity.Insurance{
			Provider:    f.RandomString(insurers),
			MemberID:    f.RandomString(memberPrefixes) + f.Numerify("########"),
			GroupNumber: groupNumber(f),
		},
	}
}

// fakeVisits returns up to ten dates from the last two years, oldest first.
func fakeVisits(f *gofakeit.Faker, now time.Time) []time.Time {
	n := f.Number(0, 10)
	visits := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		visits = append(visits, identity.CivilDate(f.DateRange(now.AddDate(-2, 0, 0), now)))
	}
	sort.Slice(visits, func(i, j int) bool { return visits[i].Before(visits[j]) })
	return visits
}

func groupNumber(f *gofakeit.Faker) string {
	if f.Float64() < 0.2 {
		return ""
	}
	switch f.Number(0, 2) {
	case 0:
		return f.Numerify("######")
	case 1:
		return "GRP" + f.Numerify("####")
	default:
		return f.RandomString([]string{"A", "B", "C"}) + f.Numerify("#####")
	}
}
