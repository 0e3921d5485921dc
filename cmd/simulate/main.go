package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

var visitReasons = []string{
	"Annual checkup", "Follow-up visit", "Flu symptoms", "Blood pressure review",
	"Prescription refill", "Back pain", "Vaccination", "Lab results discussion",
}

type SimConfig struct {
	APIBaseURL     string
	Duration       time.Duration
	Workers        int
	BookingRatio   float64
	CancelRatio    float64
	ReadRatio      float64
	ReturningRatio float64 // share of bookings made by already known patients
	SlotLimit      int
}

type openSlot struct {
	ID         uuid.UUID `json:"id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Date       string    `json:"date"`
}

type knownPatient struct {
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Insurance   struct {
		Provider    string `json:"provider"`
		MemberID    string `json:"member_id"`
		GroupNumber string `json:"group_number"`
	} `json:"insurance"`
}

type DataPool struct {
	Slots        []openSlot
	Patients     []knownPatient
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(f *gofakeit.Faker) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[f.Number(0, len(dp.appointments)-1)], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, low, high, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.Latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	last := len(latencies) - 1
	return sum / time.Duration(len(latencies)),
		latencies[0],
		latencies[last],
		latencies[min(len(latencies)*50/100, last)],
		latencies[min(len(latencies)*95/100, last)]
}

type Metrics struct {
	Booking   OperationMetrics
	Returning OperationMetrics
	Cancel    OperationMetrics
	ReadByID  OperationMetrics
	ListByDay OperationMetrics
	Lookup    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking=%.2f cancel=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.CancelRatio, cfg.ReadRatio)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := sim.loadDataPool(ctx)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	sim.pool = pool
	log.Printf("loaded: %d open slots, %d known patients", len(pool.Slots), len(pool.Patients))

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:     strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 10),
		BookingRatio:   getFloat("SIM_BOOKING_RATIO", 0.5),
		CancelRatio:    getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:      getFloat("SIM_READ_RATIO", 0.4),
		ReturningRatio: getFloat("SIM_RETURNING_RATIO", 0.3),
		SlotLimit:      getInt("SIM_SLOT_LIMIT", 200),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

// loadDataPool reads open slots and a sample of known patients from the API.
// A small slot pool keeps many workers racing for the same slots.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	pool := &DataPool{}

	if err := s.getJSON(ctx, "/slots", &pool.Slots); err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	if len(pool.Slots) == 0 {
		return nil, fmt.Errorf("no open slots, seed or generate slots first")
	}
	if len(pool.Slots) > s.config.SlotLimit {
		pool.Slots = pool.Slots[:s.config.SlotLimit]
	}

	if err := s.getJSON(ctx, "/patients/search?q=@&limit=100", &pool.Patients); err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	return pool, nil
}

func (s *Simulator) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	f := gofakeit.New(uint64(time.Now().UnixNano()) + uint64(workerID))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := f.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, f)
			case r < s.config.BookingRatio+s.config.CancelRatio:
				s.doCancel(ctx, f)
			default:
				switch f.Number(0, 2) {
				case 0:
					s.doReadByID(ctx, f)
				case 1:
					s.doListByDay(ctx, f)
				case 2:
					s.doLookup(ctx, f)
				}
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, f *gofakeit.Faker) {
	sl := s.pool.Slots[f.Number(0, len(s.pool.Slots)-1)]

	body := map[string]any{
		"provider_id": sl.ProviderID.String(),
		"slot_id":     sl.ID.String(),
		"reason":      f.RandomString(visitReasons),
	}

	om := &s.metrics.Booking
	if len(s.pool.Patients) > 0 && f.Float64() < s.config.ReturningRatio {
		p := s.pool.Patients[f.Number(0, len(s.pool.Patients)-1)]
		body["full_name"] = p.FullName
		body["date_of_birth"] = p.DateOfBirth
		body["phone"] = p.Phone
		body["email"] = p.Email
		body["insurance"] = p.Insurance
		om = &s.metrics.Returning
	} else {
		body["full_name"] = f.Name()
		body["date_of_birth"] = f.DateRange(time.Now().AddDate(-85, 0, 0), time.Now().AddDate(-18, 0, 0)).Format("01/02/2006")
		body["phone"] = f.Phone()
		body["email"] = strings.ToLower(f.Email())
		body["insurance"] = map[string]string{
			"provider":  f.RandomString([]string{"Aetna", "Cigna", "Humana", "Medicare"}),
			"member_id": f.Numerify("SIM########"),
		}
	}
	payload, _ := json.Marshal(body)

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			om.Record(latency, false, false)
		}
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var appt struct {
			ID uuid.UUID `json:"id"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &appt) == nil && appt.ID != uuid.Nil {
			s.pool.AddAppointment(appt.ID)
		}
		om.Record(latency, true, false)
	case http.StatusConflict:
		om.Record(latency, false, true)
	default:
		om.Record(latency, false, false)
	}
}

func (s *Simulator) doCancel(ctx context.Context, f *gofakeit.Faker) {
	id, ok := s.pool.RandomAppointment(f)
	if !ok {
		return
	}
	status, latency, err := s.send(ctx, http.MethodPost, fmt.Sprintf("/appointments/%s/cancel", id))
	if err != nil && ctx.Err() != nil {
		return
	}
	s.metrics.Cancel.Record(latency, status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doReadByID(ctx context.Context, f *gofakeit.Faker) {
	id, ok := s.pool.RandomAppointment(f)
	if !ok {
		return
	}
	status, latency, err := s.send(ctx, http.MethodGet, "/appointments/"+id.String())
	if err != nil && ctx.Err() != nil {
		return
	}
	s.metrics.ReadByID.Record(latency, status == http.StatusOK, false)
}

func (s *Simulator) doListByDay(ctx context.Context, f *gofakeit.Faker) {
	sl := s.pool.Slots[f.Number(0, len(s.pool.Slots)-1)]
	status, latency, err := s.send(ctx, http.MethodGet, "/appointments?date="+sl.Date)
	if err != nil && ctx.Err() != nil {
		return
	}
	s.metrics.ListByDay.Record(latency, status == http.StatusOK, false)
}

func (s *Simulator) doLookup(ctx context.Context, f *gofakeit.Faker) {
	if len(s.pool.Patients) == 0 {
		return
	}
	p := s.pool.Patients[f.Number(0, len(s.pool.Patients)-1)]
	q := url.Values{"name": {p.FullName}, "dob": {p.DateOfBirth}}
	status, latency, err := s.send(ctx, http.MethodGet, "/patients/lookup?"+q.Encode())
	if err != nil && ctx.Err() != nil {
		return
	}
	s.metrics.Lookup.Record(latency, status == http.StatusOK, false)
}

func (s *Simulator) send(ctx context.Context, method, path string) (int, time.Duration, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, latency, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking (new patient)", &s.metrics.Booking)
	printOperationReport("Booking (returning patient)", &s.metrics.Returning)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by day", &s.metrics.ListByDay)
	printOperationReport("Patient lookup", &s.metrics.Lookup)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, low, high, p50, p95 := om.Stats()

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
		avg.Round(time.Millisecond), low.Round(time.Millisecond), high.Round(time.Millisecond),
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
