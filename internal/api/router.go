package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling-core/internal/clinic"
)

type RouterConfig struct {
	Service *clinic.Service
	PgPool  *pgxpool.Pool // nil with the in-memory store
	Redis   *redis.Client // nil with the in-process locker
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/patients", func(r chi.Router) {
		r.Post("/", createPatientHandler(cfg.Service))
		r.Get("/{id}", getPatientHandler(cfg.Service))
		r.Put("/{id}/status", setPatientStatusHandler(cfg.Service))
		r.Delete("/{id}", deletePatientHandler(cfg.Service))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Service))
		r.Get("/{id}", getAppointmentHandler(cfg.Service))
		r.Put("/{id}/window", rescheduleAppointmentHandler(cfg.Service))
		r.Put("/{id}/status", changeAppointmentStatusHandler(cfg.Service))
		r.Delete("/{id}", deleteAppointmentHandler(cfg.Service))
	})

	r.Get("/days/{date}/appointments", listDayHandler(cfg.Service))

	return r
}
