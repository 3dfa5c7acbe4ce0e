package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling-core/internal/api"
	"github.com/hackgods/clinic-scheduling-core/internal/logging"
	"github.com/hackgods/clinic-scheduling-core/internal/schedule"
)

// SimConfig drives a contention run against a live api-server: many
// workers book, move and re-status appointments on one day, then the
// result is checked for overlapping visits and duplicate patient numbers.
type SimConfig struct {
	APIBaseURL      string
	Date            string
	Duration        time.Duration
	Workers         int
	Patients        int
	BookingRatio    float64
	StatusRatio     float64
	RescheduleRatio float64
}

type DataPool struct {
	Patients     []uuid.UUID
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && (status == http.StatusConflict || status == http.StatusUnprocessableEntity):
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	return sum / time.Duration(len(latencies)),
		latencies[len(latencies)*50/100],
		latencies[min(len(latencies)*95/100, len(latencies)-1)]
}

type Metrics struct {
	Booking    OperationMetrics
	Status     OperationMetrics
	Reschedule OperationMetrics
	ReadDay    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	day     time.Time
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

var statuses = []string{"validated", "confirmed", "cancelled", "postponed", "no_show", "deleted"}

func main() {
	log := logging.New(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"), "simulate")

	cfg := loadConfig()
	day, err := time.Parse(schedule.DateFormat, cfg.Date)
	if err != nil {
		log.Fatal().Err(err).Msg("SIM_DATE must be YYYY-MM-DD")
	}
	if cfg.Workers <= 0 || cfg.Duration <= 0 || cfg.Patients <= 0 {
		log.Fatal().Msg("SIM_WORKERS, SIM_DURATION and SIM_PATIENTS must be positive")
	}

	sim := &Simulator{
		config: cfg,
		day:    day,
		pool:   &DataPool{},
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	ctx := context.Background()
	if err := sim.registerPatients(ctx); err != nil {
		log.Fatal().Err(err).Msg("register patients")
	}

	sim.Run()
	sim.PrintReport()

	if err := sim.Verify(ctx); err != nil {
		log.Error().Err(err).Msg("verification failed")
		os.Exit(1)
	}
	log.Info().Msg("no overlapping visits and no duplicate patient numbers")
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Date:            getEnv("SIM_DATE", time.Now().AddDate(0, 0, 1).Format(schedule.DateFormat)),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		Patients:        getInt("SIM_PATIENTS", 50),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.4),
		StatusRatio:     getFloat("SIM_STATUS_RATIO", 0.3),
		RescheduleRatio: getFloat("SIM_RESCHEDULE_RATIO", 0.2),
	}

	total := cfg.BookingRatio + cfg.StatusRatio + cfg.RescheduleRatio
	if total > 1 {
		cfg.BookingRatio /= total
		cfg.StatusRatio /= total
		cfg.RescheduleRatio /= total
	}
	return cfg
}

func (s *Simulator) registerPatients(ctx context.Context) error {
	for i := 0; i < s.config.Patients; i++ {
		var p api.PatientResponse
		status, err := s.call(ctx, http.MethodPost, "/patients", api.CreatePatientRequest{Name: fmt.Sprintf("sim patient %d", i+1)}, &p)
		if err != nil {
			return err
		}
		if status != http.StatusCreated {
			return fmt.Errorf("create patient: status %d", status)
		}
		s.pool.Patients = append(s.pool.Patients, p.ID)
	}
	s.log.Info().Int("patients", len(s.pool.Patients)).Msg("patients registered")
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.StatusRatio:
			s.doStatus(ctx, rng)
		case r < s.config.BookingRatio+s.config.StatusRatio+s.config.RescheduleRatio:
			s.doReschedule(ctx, rng)
		default:
			s.doReadDay(ctx)
		}
	}
}

// randomStart picks a quarter-hour between 09:00 and 20:00 UTC.
func (s *Simulator) randomStart(rng *rand.Rand) time.Time {
	return s.day.Add(9*time.Hour + time.Duration(rng.Intn(44))*15*time.Minute)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	var appt api.AppointmentResponse
	status, err := s.call(ctx, http.MethodPost, "/appointments", api.CreateAppointmentRequest{
		PatientID:       patientID.String(),
		Start:           s.randomStart(rng),
		DurationMinutes: 15 * (1 + rng.Intn(3)),
	}, &appt)
	s.metrics.Booking.Record(time.Since(start), status, err)

	if err == nil && status == http.StatusCreated {
		s.pool.AddAppointment(appt.ID)
	}
}

func (s *Simulator) doStatus(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPut, "/appointments/"+id.String()+"/status",
		api.StatusRequest{Status: statuses[rng.Intn(len(statuses))]}, nil)
	s.metrics.Status.Record(time.Since(start), status, err)
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPut, "/appointments/"+id.String()+"/window", api.RescheduleRequest{
		Start:           s.randomStart(rng),
		DurationMinutes: 15 * (1 + rng.Intn(3)),
	}, nil)
	s.metrics.Reschedule.Record(time.Since(start), status, err)
}

func (s *Simulator) doReadDay(ctx context.Context) {
	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/days/"+s.config.Date+"/appointments", nil, nil)
	s.metrics.ReadDay.Record(time.Since(start), status, err)
}

// Verify reads the final day and every patient back. Shifts may push
// visits past closing, which is allowed; overlaps between visits and
// shared numbers are not.
func (s *Simulator) Verify(ctx context.Context) error {
	var day api.DayResponse
	if _, err := s.call(ctx, http.MethodGet, "/days/"+s.config.Date+"/appointments", nil, &day); err != nil {
		return err
	}

	var visits []api.AppointmentResponse
	for _, a := range day.Appointments {
		if a.Kind == string(schedule.KindVisit) {
			visits = append(visits, a)
		}
	}
	for i := 1; i < len(visits); i++ {
		if visits[i].Start.Before(visits[i-1].End) {
			return fmt.Errorf("visits %s and %s overlap", visits[i-1].ID, visits[i].ID)
		}
	}

	holders := make(map[string]uuid.UUID)
	for _, id := range s.pool.Patients {
		var p api.PatientResponse
		if _, err := s.call(ctx, http.MethodGet, "/patients/"+id.String(), nil, &p); err != nil {
			return err
		}
		if p.Number == "-" || p.Number == "" {
			continue
		}
		if other, ok := holders[p.Number]; ok {
			return fmt.Errorf("number %s held by %s and %s", p.Number, other, p.ID)
		}
		holders[p.Number] = p.ID
	}

	s.log.Info().Int("visits", len(visits)).Int("numbered_patients", len(holders)).Msg("final state checked")
	return nil
}

func (s *Simulator) call(ctx context.Context, method, path string, body, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Date: %s  Duration: %s  Workers: %d\n\n", s.config.Date, s.config.Duration, s.config.Workers)

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Status change", &s.metrics.Status)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Read day", &s.metrics.ReadDay)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, pct(conflict))
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond))
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
