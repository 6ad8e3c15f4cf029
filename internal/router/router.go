package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-account-service/internal/config"
	"go-account-service/internal/handler"
	"go-account-service/internal/metrics"
	"go-account-service/internal/middleware"
)

type Handlers struct {
	Account *handler.AccountHandler
	Audit   *handler.AuditHandler
	Docs    *handler.DocsHandler
	Health  *handler.HealthHandler
}

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	handlers Handlers,
	m *metrics.Metrics,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM, cfg.TrustedProxyPrefixes())

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)
	r.Use(middleware.Metrics(m))

	r.Get("/health", handlers.Health.Health)
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/openapi.yaml", handlers.Docs.OpenAPI)
	r.Get("/swagger", handlers.Docs.SwaggerUI)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/signup", handlers.Account.Signup)
			auth.Get("/verify-email/{token}", handlers.Account.VerifyEmail)
			auth.Post("/login", handlers.Account.Login)
			auth.Post("/request-reset", handlers.Account.RequestReset)
			auth.Post("/reset-password/{token}", handlers.Account.ResetPassword)
			auth.With(authMiddleware.RequireAuth).Get("/own", handlers.Account.Own)
			auth.With(authMiddleware.RequireAuth).Get("/activity", handlers.Audit.Activity)
		})
	})

	return r
}
