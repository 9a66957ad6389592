package handler

import (
	"economy-core/internal/adapter/http/middleware"
	"economy-core/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	LedgerSvc      ports.LedgerService
	ModuleAuthSvc  ports.ModuleAuthService
	ModuleRepo     ports.ModuleRepository
	TokenSvc       ports.TokenService
	Monitor        ports.DegradedMonitor // nil = no degraded reporting in /healthz
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis) and metrics
	r.GET("/healthz", HealthCheck(deps.Monitor, deps.HealthCheckers...))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	moduleHandler := NewModuleHandler(deps.ModuleAuthSvc)
	modules := v1.Group("/modules")
	{
		modules.POST("/register", moduleHandler.Register)
		modules.POST("/login", moduleHandler.Login)
	}

	// --- Token-authenticated routes (module API) ---
	auth := middleware.ModuleAuth(deps.TokenSvc, deps.ModuleRepo, deps.Logger)
	walletHandler := NewWalletHandler(deps.WalletSvc)
	ledgerHandler := NewLedgerHandler(deps.LedgerSvc)

	wallet := v1.Group("/wallet", auth)
	{
		wallet.POST("/deposit", walletHandler.Deposit)
		wallet.POST("/withdraw", walletHandler.Withdraw)
		wallet.POST("/transfer", walletHandler.Transfer)
	}

	players := v1.Group("/players", auth)
	{
		players.GET("/:player/balance", walletHandler.GetBalance)
		players.POST("/seen", walletHandler.Seen)
	}

	ledger := v1.Group("/ledger", auth)
	{
		ledger.GET("", ledgerHandler.List)
		ledger.POST("/log", ledgerHandler.Log)
	}

	return r
}
