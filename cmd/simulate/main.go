package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-booking/internal/auth"
	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	ReserveRatio float64
	ConfirmRatio float64
	ReadRatio    float64
	Patients     int
	DaysAhead    int
	JWTSecret    string
}

type patient struct {
	user  auth.User
	token string
}

type heldReservation struct {
	id      uuid.UUID
	patient patient
}

type DataPool struct {
	Patients []patient
	Slots    []booking.TimeSlot

	mu           sync.Mutex
	reservations []heldReservation
}

func (dp *DataPool) AddReservation(r heldReservation) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.reservations = append(dp.reservations, r)
}

// TakeReservation removes a random held reservation so only one worker
// tries to confirm it.
func (dp *DataPool) TakeReservation(rng *rand.Rand) (heldReservation, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.reservations) == 0 {
		return heldReservation{}, false
	}
	idx := rng.Intn(len(dp.reservations))
	r := dp.reservations[idx]
	dp.reservations[idx] = dp.reservations[len(dp.reservations)-1]
	dp.reservations = dp.reservations[:len(dp.reservations)-1]
	return r, true
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeConflict
	outcomeFailed
)

// opStats tallies one kind of request. Conflicts are expected under load and
// counted apart from failures.
type opStats struct {
	mu        sync.Mutex
	counts    [3]int
	latencies []time.Duration
}

func (o *opStats) record(latency time.Duration, status int, err error, want int) {
	result := outcomeFailed
	switch {
	case status == http.StatusConflict:
		result = outcomeConflict
	case err == nil && status == want:
		result = outcomeOK
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts[result]++
	o.latencies = append(o.latencies, latency)
}

type summary struct {
	total, ok, conflicts, failed int
	avg, p50, p95, p99, max      time.Duration
}

func (o *opStats) summarize() summary {
	o.mu.Lock()
	defer o.mu.Unlock()

	sum := summary{
		ok:        o.counts[outcomeOK],
		conflicts: o.counts[outcomeConflict],
		failed:    o.counts[outcomeFailed],
		total:     len(o.latencies),
	}
	if sum.total == 0 {
		return sum
	}

	sorted := slices.Clone(o.latencies)
	slices.Sort(sorted)
	var total time.Duration
	for _, l := range sorted {
		total += l
	}
	at := func(pct int) time.Duration { return sorted[min(len(sorted)*pct/100, len(sorted)-1)] }

	sum.avg = total / time.Duration(len(sorted))
	sum.p50, sum.p95, sum.p99 = at(50), at(95), at(99)
	sum.max = sorted[len(sorted)-1]
	return sum
}

type Metrics struct {
	Reserve          opStats
	Confirm          opStats
	ListSlots        opStats
	ListAppointments opStats
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	logger  zerolog.Logger
	metrics Metrics
}

func main() {
	_ = godotenv.Load()
	logger := logging.New("simulate", env("APP_ENV", "dev", asString), env("LOG_LEVEL", "info", asString))

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("reserve", cfg.ReserveRatio).
		Float64("confirm", cfg.ConfirmRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := sim.loadDataPool(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	sim.pool = pool
	logger.Info().Int("patients", len(pool.Patients)).Int("slots", len(pool.Slots)).Msg("data pool loaded")

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   strings.TrimRight(env("SIM_API_BASE_URL", "http://localhost:8080", asString), "/"),
		Duration:     env("SIM_DURATION", 30*time.Second, time.ParseDuration),
		Workers:      env("SIM_WORKERS", 10, strconv.Atoi),
		ReserveRatio: env("SIM_RESERVE_RATIO", 0.5, asFloat),
		ConfirmRatio: env("SIM_CONFIRM_RATIO", 0.2, asFloat),
		ReadRatio:    env("SIM_READ_RATIO", 0.3, asFloat),
		Patients:     env("SIM_PATIENTS", 200, strconv.Atoi),
		DaysAhead:    env("SIM_DAYS_AHEAD", 7, strconv.Atoi),
		JWTSecret:    os.Getenv("JWT_SECRET"),
	}

	// Normalize ratios
	total := cfg.ReserveRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total > 0 {
		cfg.ReserveRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required to mint patient tokens")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Patients <= 0 {
		return fmt.Errorf("SIM_PATIENTS must be > 0")
	}
	return nil
}

// loadDataPool mints tokens for synthetic patients and collects every open
// slot the API offers over the next DaysAhead days.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	pool := &DataPool{}

	ttl := s.config.Duration + 10*time.Minute
	for i := 0; i < s.config.Patients; i++ {
		u := auth.User{
			ID:    uuid.New(),
			Name:  gofakeit.Name(),
			Email: gofakeit.Email(),
			Role:  auth.RolePatient,
		}
		token, err := auth.IssueToken(s.config.JWTSecret, u, ttl)
		if err != nil {
			return nil, fmt.Errorf("issue token: %w", err)
		}
		pool.Patients = append(pool.Patients, patient{user: u, token: token})
	}

	var providers []booking.Provider
	if _, err := s.getJSON(ctx, "/providers", "", &providers); err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}

	today := time.Now()
	for _, p := range providers {
		for d := 1; d <= s.config.DaysAhead; d++ {
			date := today.AddDate(0, 0, d).Format("2006-01-02")
			var slots []booking.TimeSlot
			path := fmt.Sprintf("/providers/%s/slots?date=%s", p.ID, date)
			if _, err := s.getJSON(ctx, path, "", &slots); err != nil {
				return nil, fmt.Errorf("load slots for %s: %w", p.Name, err)
			}
			pool.Slots = append(pool.Slots, slots...)
		}
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers loaded; run cmd/seed first")
	}
	if len(pool.Slots) == 0 {
		return nil, fmt.Errorf("no open slots in the next %d days", s.config.DaysAhead)
	}
	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

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

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.ReserveRatio:
			s.doReserve(ctx, rng)
		case r < s.config.ReserveRatio+s.config.ConfirmRatio:
			s.doConfirm(ctx, rng)
		case rng.Intn(2) == 0:
			s.doListSlots(ctx, rng)
		default:
			s.doListAppointments(ctx, rng)
		}
	}
}

func (s *Simulator) randomPatient(rng *rand.Rand) patient {
	return s.pool.Patients[rng.Intn(len(s.pool.Patients))]
}

func (s *Simulator) doReserve(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	p := s.randomPatient(rng)

	start := time.Now()
	var res struct {
		ID uuid.UUID `json:"id"`
	}
	status, err := s.postJSON(ctx, "/reservations", p.token, map[string]string{"slot_id": slot.ID}, &res)
	latency := time.Since(start)

	if err == nil && status == http.StatusCreated && res.ID != uuid.Nil {
		s.pool.AddReservation(heldReservation{id: res.ID, patient: p})
	}
	s.metrics.Reserve.record(latency, status, err, http.StatusCreated)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	held, ok := s.pool.TakeReservation(rng)
	if !ok {
		return
	}

	details := map[string]any{
		"patient_name":     held.patient.user.Name,
		"patient_email":    held.patient.user.Email,
		"phone":            gofakeit.Numerify("+1 555 ### ####"),
		"gender":           gofakeit.RandomString([]string{"male", "female", "other"}),
		"symptoms":         gofakeit.RandomString([]string{"Tooth pain when chewing", "Bleeding gums", "Routine check-up and cleaning"}),
		"chronic_diseases": "none",
		"payment_method":   gofakeit.RandomString([]string{"cash", "card"}),
	}

	start := time.Now()
	status, err := s.postJSON(ctx, "/reservations/"+held.id.String()+"/confirm", held.patient.token, details, nil)
	latency := time.Since(start)

	s.metrics.Confirm.record(latency, status, err, http.StatusCreated)
}

func (s *Simulator) doListSlots(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	start := time.Now()
	status, err := s.getJSON(ctx, fmt.Sprintf("/providers/%s/slots?date=%s", slot.ProviderID, slot.Date), "", nil)
	s.metrics.ListSlots.record(time.Since(start), status, err, http.StatusOK)
}

func (s *Simulator) doListAppointments(ctx context.Context, rng *rand.Rand) {
	p := s.randomPatient(rng)

	start := time.Now()
	status, err := s.getJSON(ctx, "/appointments", p.token, nil)
	s.metrics.ListAppointments.record(time.Since(start), status, err, http.StatusOK)
}

func (s *Simulator) getJSON(ctx context.Context, path, token string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return 0, err
	}
	return s.do(req, token, out)
}

func (s *Simulator) postJSON(ctx context.Context, path, token string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, token, out)
}

func (s *Simulator) do(req *http.Request, token string, out any) (int, error) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", req.URL.Path, err)
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Printf("\nSimulation: %s with %d workers against %s\n\n", s.config.Duration, s.config.Workers, s.config.APIBaseURL)
	fmt.Fprintln(w, "operation\ttotal\tok\tconflict\tfailed\tavg\tp50\tp95\tp99\tmax\t")
	for _, op := range []struct {
		name  string
		stats *opStats
	}{
		{"reserve", &s.metrics.Reserve},
		{"confirm", &s.metrics.Confirm},
		{"list slots", &s.metrics.ListSlots},
		{"list appointments", &s.metrics.ListAppointments},
	} {
		sum := op.stats.summarize()
		if sum.total == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			op.name, sum.total, sum.ok, sum.conflicts, sum.failed,
			ms(sum.avg), ms(sum.p50), ms(sum.p95), ms(sum.p99), ms(sum.max))
	}
	_ = w.Flush()
}

func ms(d time.Duration) string { return d.Round(100 * time.Microsecond).String() }

// env reads key with parse, falling back to def when unset or malformed.
func env[T any](key string, def T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ignoring %s=%q: %v\n", key, raw, err)
		return def
	}
	return v
}

func asString(v string) (string, error) { return v, nil }
func asFloat(v string) (float64, error) { return strconv.ParseFloat(v, 64) }
