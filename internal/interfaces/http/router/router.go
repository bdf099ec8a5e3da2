package router

import (
	"time"

	appledger "github.com/finledger/backend/internal/application/ledger"
	"github.com/finledger/backend/internal/infrastructure/auth"
	"github.com/finledger/backend/internal/infrastructure/config"
	"github.com/finledger/backend/internal/infrastructure/logger"
	"github.com/finledger/backend/internal/infrastructure/persistence"
	"github.com/finledger/backend/internal/interfaces/http/handler"
	"github.com/finledger/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services groups the application services the HTTP surface exposes
type Services struct {
	Transactions *appledger.TransactionService
	Batches      *appledger.BatchService
	Approvals    *appledger.ApprovalService
	Recurrence   *appledger.RecurrenceService
	Audit        *appledger.AuditService
}

// Config holds router dependencies
type Config struct {
	AppConfig  *config.Config
	Logger     *zap.Logger
	DB         *persistence.Database
	JWTService *auth.JWTService
	Services   Services
	Version    string
}

// publicApprovalRateLimit bounds anonymous magic-link traffic per IP
const publicApprovalRateLimit = 30

// Setup builds the gin engine with all middleware and routes
func Setup(cfg Config) *gin.Engine {
	if cfg.AppConfig.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(cfg.Logger),
		logger.Recovery(cfg.Logger),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig(cfg.AppConfig)),
	)

	handler.NewSystemHandler(cfg.DB, cfg.Version).RegisterRoutes(engine)

	// authenticated ledger surface, company-scoped via JWT claims
	ledgerGroup := engine.Group("/api/v1/ledger")
	ledgerGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTService))
	{
		handler.NewTransactionHandler(cfg.Services.Transactions, cfg.Services.Approvals).RegisterRoutes(ledgerGroup)
		handler.NewBatchHandler(cfg.Services.Batches, cfg.Services.Approvals).RegisterRoutes(ledgerGroup)
		handler.NewRecurringHandler(cfg.Services.Recurrence).RegisterRoutes(ledgerGroup)
		handler.NewAuditHandler(cfg.Services.Audit).RegisterRoutes(ledgerGroup)
	}

	// public magic-link surface: no session, rate limited per IP
	approvalGroup := engine.Group("/api/v1/approvals")
	approvalGroup.Use(middleware.RateLimit(middleware.NewRateLimiter(publicApprovalRateLimit, time.Minute)))
	handler.NewApprovalHandler(cfg.Services.Approvals).RegisterRoutes(approvalGroup)

	return engine
}

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	return corsCfg
}
