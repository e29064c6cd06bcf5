package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caliphsdev/waterbalance/internal/controller"
	"github.com/caliphsdev/waterbalance/internal/middleware"
	"github.com/caliphsdev/waterbalance/internal/model"
	"github.com/caliphsdev/waterbalance/internal/repository"
	"github.com/caliphsdev/waterbalance/internal/service"
	"github.com/caliphsdev/waterbalance/internal/waterbalance"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// serverConfig holds the handful of scalar settings the host needs,
// populated from environment variables (optionally loaded from a .env file
// via godotenv, the same pattern the rest of the example pack reaches for
// over pulling in a full config framework — see DESIGN.md).
type serverConfig struct {
	port            string
	ginMode         string
	postgresDSN     string
	shutdownTimeout time.Duration
	seedOnStart     bool
	recalcCron      string
}

func loadConfig() serverConfig {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	return serverConfig{
		port:            getEnv("SERVER_PORT", "8080"),
		ginMode:         getEnv("GIN_MODE", gin.ReleaseMode),
		postgresDSN:     getEnv("POSTGRES_DSN", "host=localhost user=postgres password=postgres dbname=waterbalance port=5432 sslmode=disable"),
		shutdownTimeout: 15 * time.Second,
		seedOnStart:     getEnv("SEED_ON_START", "false") == "true",
		recalcCron:      getEnv("RECALC_CRON", "@monthly"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	cfg := loadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	db, err := gorm.Open(postgres.Open(cfg.postgresDSN), &gorm.Config{})
	if err != nil {
		logger.Error("failed to connect to database", "error", err.Error())
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&model.Facility{},
		&model.StorageHistoryRow{},
		&model.MeterReading{},
		&model.EnvironmentReading{},
		&model.SiteConstant{},
	); err != nil {
		logger.Error("failed to migrate database", "error", err.Error())
		os.Exit(1)
	}

	if cfg.seedOnStart {
		if err := repository.NewSeedRepository(db).SeedDatabase(); err != nil {
			logger.Error("failed to seed database", "error", err.Error())
			os.Exit(1)
		}
	}

	meters := repository.NewMeterRepository(db)
	facilities := repository.NewFacilityRepository(db)
	storageHistory := repository.NewStorageHistoryRepository(db)
	environment := repository.NewEnvironmentalRepository(db)
	constants := repository.NewConstantsRepository(db)

	inflows := waterbalance.NewInflowsCalculator(meters, facilities, environment, constants, logger)
	outflows := waterbalance.NewOutflowsCalculator(meters, facilities, environment, constants, logger)
	storage := waterbalance.NewStorageCalculator(facilities, storageHistory, logger)
	recycled := waterbalance.NewRecycledCalculator(meters, constants, logger)
	kpis := waterbalance.NewKPICalculator(meters, constants, logger)
	orchestrator := waterbalance.NewOrchestrator(inflows, outflows, storage, recycled, kpis, constants, logger)
	runway := waterbalance.NewRunwayProjector(facilities, storageHistory, constants, logger)
	trends := service.NewTrendService(orchestrator)

	balanceController := controller.NewBalanceController(orchestrator, runway, trends, logger)

	recalcJob := cron.New()
	if _, err := recalcJob.AddFunc(cfg.recalcCron, func() {
		recalculateCurrentMonth(orchestrator, logger)
	}); err != nil {
		logger.Error("failed to schedule recalculation job", "error", err.Error())
		os.Exit(1)
	}
	recalcJob.Start()
	defer recalcJob.Stop()

	gin.SetMode(cfg.ginMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.StructuredLoggingMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "waterbalance"})
	})
	router.GET("/metrics", middleware.MetricsHandler())

	v1 := router.Group("/v1")
	{
		balance := v1.Group("/balance")
		{
			balance.GET("", balanceController.GetBalance)
			balance.GET("/trend", balanceController.GetTrend)
			balance.GET("/runway", balanceController.GetRunway)
			balance.POST("/cache/clear", balanceController.ClearCache)
		}
	}

	server := &http.Server{
		Addr:    ":" + cfg.port,
		Handler: router,
	}

	go func() {
		logger.Info("starting server", "port", cfg.port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err.Error())
		os.Exit(1)
	}

	logger.Info("server exited properly")
}

// recalculateCurrentMonth clears the orchestrator's cache and recomputes the
// current calendar month, so the cron-driven balance a consumer fetches
// afterward always reflects meter readings recorded since the last run.
func recalculateCurrentMonth(orchestrator *waterbalance.Orchestrator, logger *slog.Logger) {
	now := time.Now().UTC()
	period, err := model.NewPeriod(now.Year(), int(now.Month()))
	if err != nil {
		logger.Error("recalculation job: invalid period", "error", err.Error())
		return
	}

	if err := orchestrator.ClearCache(context.Background()); err != nil {
		logger.Error("recalculation job: failed to clear cache", "error", err.Error())
		return
	}

	result, err := orchestrator.Calculate(context.Background(), period, model.ModeInternal, true)
	if err != nil {
		logger.Error("recalculation job: failed to calculate balance", "period", period.PeriodShort(), "error", err.Error())
		return
	}

	middleware.RecordBalanceResult(result)
	logger.Info("recalculation job completed",
		"period", period.PeriodShort(),
		"status", result.Status,
		"is_balanced", result.IsBalanced,
	)
}
