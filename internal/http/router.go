package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hrstack/authhub/internal/auth"
	"github.com/hrstack/authhub/internal/authz"
	"github.com/hrstack/authhub/internal/config"
	"github.com/hrstack/authhub/internal/http/handlers"
	"github.com/hrstack/authhub/internal/http/middlewares"
	"github.com/hrstack/authhub/internal/observability"
	"github.com/hrstack/authhub/internal/otp"
	"github.com/hrstack/authhub/internal/repo/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxRequestBody = 1 << 20 // 1 MiB

func NewRouter(cfg config.Config, log *slog.Logger, pool *pgxpool.Pool, prom *observability.Prom, wake handlers.WakeSignal) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(otelgin.Middleware("authhub-api"))
	r.Use(prom.GinHandleMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxRequestBody))
	r.Use(middlewares.RequireJSON())

	// wire up repositories

	accountsRepo := postgres.NewAccountsRepo(pool, prom)
	jobsRepo := postgres.NewEmailJobsRepo(pool, prom)
	registrationStore := postgres.NewRegistrationStore(accountsRepo, jobsRepo)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	otpEngine := otp.NewEngine(cfg.OTPTTL())

	authHandler := handlers.NewAuthHandler(accountsRepo, accountsRepo, registrationStore, jobsRepo, jwtManager, otpEngine, prom)

	if wake != nil {
		authHandler = authHandler.WithWakeSignal(wake)
	}
	accountsHandler := handlers.NewAccountsHandler(accountsRepo)
	healthHandler := handlers.NewHealthHandler(jobsRepo)

	authMw := middlewares.NewAuthMiddleware(jwtManager)

	// Credential endpoints share one limiter keyed by client IP.
	limiter := middlewares.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow)
	limited := limiter.RateLimiterMiddleware(middlewares.KeyByIP)

	authGroup := r.Group("/auth")
	authGroup.Use(limited)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/verify-otp", authHandler.VerifyOTP)
		authGroup.POST("/resend-otp", authHandler.ResendOTP)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)
		authGroup.POST("/refresh-token", authHandler.Refresh)
		authGroup.POST("/validate-token", authHandler.Validate)
	}

	admin := r.Group("/admin")
	admin.Use(authMw.RequireAuth())
	{
		admin.GET("/accounts/:email",
			authMw.RequirePermissionOrSelf(authz.PermManageEmployees, "email"),
			accountsHandler.GetByEmail,
		)
	}

	// operational endpoints

	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/readyz", healthHandler.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(prom.Registry, promhttp.HandlerOpts{})))

	return r
}
