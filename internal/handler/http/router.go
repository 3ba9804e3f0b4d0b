package http

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/resto-planning/pointage-backend-go/internal/config"
	"github.com/resto-planning/pointage-backend-go/internal/handler/http/middleware"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/jwt"
)

func NewRouter(cfg *config.Config, JWTService jwt.Service, anomalyHandler AnomalyHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(cfg.App.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
		Level:       cfg.App.SlogLevel(),
	})).With(
		slog.String("app", "pointage-backend"),
		slog.String("env", cfg.App.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.App.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {
		// Authenticated by its own query token
		r.Get("/anomalies/stream", anomalyHandler.Stream)

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired)

			r.Route("/anomalies", func(r chi.Router) {
				r.Use(middleware.RequireManager)
				r.Get("/", anomalyHandler.GetReport)
				r.Get("/export.pdf", anomalyHandler.ExportReportPDF)
			})

			r.Route("/employees/{employeeID}", func(r chi.Router) {
				r.Get("/deviations", anomalyHandler.GetEmployeeDeviations)
				r.Get("/shifts/overview", anomalyHandler.GetShiftOverview)
			})
		})
	})
	return r
}
