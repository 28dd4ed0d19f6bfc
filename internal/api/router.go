package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/NaByeonggil/clinic-care-coordination/internal/observability/metrics"
	"github.com/NaByeonggil/clinic-care-coordination/internal/workflow"
)

type RouterConfig struct {
	Workflow *workflow.Workflow
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Metrics  *metrics.WorkflowMetrics
	Logger   *zap.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(RecoverMiddleware(logger))
	r.Use(LoggingMiddleware(logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Everything below requires a resolved actor.
	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware)

		r.Post("/appointments", requestAppointmentHandler(cfg.Workflow))
		r.Get("/appointments", listAppointmentsHandler(cfg.Workflow))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Workflow))
		r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Workflow))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Workflow))
		r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Workflow))

		r.Post("/prescriptions", issuePrescriptionHandler(cfg.Workflow))
		r.Get("/prescriptions", listPrescriptionsHandler(cfg.Workflow))
		r.Get("/prescriptions/{id}", getPrescriptionHandler(cfg.Workflow))
		r.Get("/prescriptions/{id}/pharmacies", candidatePharmaciesHandler(cfg.Workflow))
		r.Post("/prescriptions/{id}/route", routePrescriptionHandler(cfg.Workflow))
		r.Post("/prescriptions/{id}/dispense", dispensePrescriptionHandler(cfg.Workflow))

		r.Get("/notifications", listNotificationsHandler(cfg.Workflow))
		r.Post("/notifications/read", markNotificationReadHandler(cfg.Workflow))
	})

	return r
}
