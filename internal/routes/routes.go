package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"edu-payments-backend/internal/config"
	handler "edu-payments-backend/internal/handlers"
	"edu-payments-backend/internal/provider"
	"edu-payments-backend/internal/repository"
	service "edu-payments-backend/internal/services/reconciliation"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, log *zap.Logger) {
	paymentRepo := repository.NewPaymentRepository(db)
	runLogRepo := repository.NewRunLogRepository(db)

	var client provider.Client
	if cfg.Provider.BaseURL != "" {
		client = provider.NewHTTPClient(
			cfg.Provider.BaseURL,
			cfg.Provider.APIKey,
			cfg.Provider.RequestsPerSecond,
			log,
		)
	}

	engine := service.NewEngine(paymentRepo, client, log)
	reconHandler := handler.NewReconciliationHandler(engine, runLogRepo, log)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	recon := api.Group("/reconciliation")
	recon.POST("/run", reconHandler.Run)
	recon.POST("/upload", reconHandler.Upload)
	recon.GET("/runs", reconHandler.ListRuns)
	recon.GET("/runs/:id", reconHandler.GetRun)
}
