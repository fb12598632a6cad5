package http

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/worker"
	"github.com/cmlabs-hris/attendance-ledger/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/metrics"
)

type RouterConfig struct {
	Version     string
	Env         string
	LogLevel    slog.Level
	CORSOrigins []string
}

type Handlers struct {
	Mark       MarkHandler
	Schedule   ScheduleHandler
	Compliance ComplianceHandler
	Events     EventsHandler
}

func NewRouter(cfg RouterConfig, JWTService jwt.Service, h Handlers) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(cfg.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       cfg.LogLevel,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "attendance-ledger"),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  cfg.LogLevel,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// The event stream also accepts its short-lived token in the query string
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verify(JWTService.JWTAuth(), jwtauth.TokenFromHeader, tokenFromQuery))
			r.Use(middleware.AuthRequired(jwt.TokenTypeSSE, jwt.TokenTypeAccess))
			r.Get("/events", h.Events.Stream)
		})

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(jwt.TokenTypeAccess))
			r.Use(chiMiddleware.AllowContentType("application/json"))

			r.Get("/events/token", h.Events.GetSSEToken)

			r.Route("/marks", func(r chi.Router) {
				r.With(middleware.RequirePermission(worker.PermissionMarkCreate)).Post("/", h.Mark.Submit)
				r.With(middleware.RequirePermission(worker.PermissionMarkViewOwn)).Get("/my", h.Mark.ListMine)
			})

			r.Route("/workers/{workerID}", func(r chi.Router) {
				r.With(middleware.RequirePermission(worker.PermissionMarkViewAll)).Get("/marks", h.Mark.ListForWorker)
				r.With(middleware.RequirePermission(worker.PermissionChainVerify)).Get("/chain/verify", h.Mark.VerifyChain)
			})
			r.With(middleware.RequirePermission(worker.PermissionChainVerify)).Get("/chain/verify", h.Mark.VerifyAll)

			r.Route("/schedule-entries", func(r chi.Router) {
				r.Use(middleware.RequirePermission(worker.PermissionScheduleManage))
				r.Get("/", h.Schedule.List)
				r.Post("/", h.Schedule.Create)
				r.Put("/{id}", h.Schedule.Update)
				r.Delete("/{id}", h.Schedule.Delete)
			})

			r.With(middleware.RequirePermission(worker.PermissionScheduleManage)).Post("/compliance/recompute", h.Compliance.Recompute)
			r.With(middleware.RequirePermission(worker.PermissionAlertView)).Get("/compliance/alerts", h.Compliance.ListAlerts)
			r.With(middleware.RequirePermission(worker.PermissionAlertView)).Get("/anomalies", h.Compliance.ListAnomalies)
		})
	})
	return r
}

// tokenFromQuery reads the SSE token, since EventSource cannot send headers.
func tokenFromQuery(r *http.Request) string {
	return r.URL.Query().Get("token")
}
