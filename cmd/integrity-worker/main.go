package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling-core/internal/app"
	"github.com/hackgods/clinic-scheduling-core/internal/clinic"
	"github.com/hackgods/clinic-scheduling-core/internal/config"
	"github.com/hackgods/clinic-scheduling-core/internal/logging"
)

// integrity-worker periodically checks today's and tomorrow's schedule and
// the patient numbers, and logs anything that breaks the scheduling rules.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("dev", "info", "integrity-worker")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, cfg.LogLevel, "integrity-worker")
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("integrity-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(rootCtx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}
	defer rt.Close()

	runOnce(rootCtx, rt.Service, cfg.Location, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping integrity-worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, rt.Service, cfg.Location, log)
		}
	}
}

func runOnce(ctx context.Context, svc *clinic.Service, loc *time.Location, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	today := start.In(loc)
	report, err := svc.CheckIntegrity(runCtx, []time.Time{today, today.AddDate(0, 0, 1)})
	if err != nil {
		log.Error().Err(err).Msg("integrity run error")
		return
	}

	for number, ids := range report.DuplicateNumbers {
		log.Error().Str("number", number).Int("holders", len(ids)).Msg("patient number held twice")
	}
	for _, o := range report.Overlaps {
		log.Warn().Str("date", o.Date).
			Str("first", o.First.String()).
			Str("other", o.Other.String()).
			Msg("overlapping visits")
	}
	for _, id := range report.OutOfHours {
		log.Warn().Str("appointment_id", id.String()).Msg("appointment outside business hours")
	}

	log.Info().
		Bool("ok", report.OK()).
		Int("patients", report.Patients).
		Dur("took", time.Since(start)).
		Msg("integrity run complete")
}
