package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"libraryhub/internal/adapters/http/middleware"
	"libraryhub/internal/adapters/http/routes"
	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/config"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	_ "libraryhub/docs" // Swagger docs
)

const shutdownTimeout = 15 * time.Second

// @title libraryhub API
// @version 1.0
// @description Library lending backend: catalog, borrow requests, loans, fines and donations.

// @contact.name API Support
// @contact.email support@libraryhub.local

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Setup(logger.Options{}).Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Setup(cfg.Log)
	defer logger.Sync()

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer config.CloseDatabase()

	if err := models.AutoMigrate(db); err != nil {
		logger.Fatal("failed to auto migrate", zap.Error(err))
	}
	logger.Info("database migration completed")

	if err := config.NewSeeder(db, cfg.Admin).Run(context.Background()); err != nil {
		logger.Warn("seeding failed", zap.Error(err))
	}

	svc := services.NewContainer(db, cfg, services.NewNotifier(cfg.Mail), services.SystemClock)

	if err := svc.Cron.Register(); err != nil {
		logger.Fatal("failed to register cron jobs", zap.Error(err))
	}
	svc.Cron.Start()

	app := routes.NewApp(cfg)
	middleware.Setup(app, cfg)
	routes.Setup(app, cfg, svc, config.HealthCheck)

	go gracefulShutdown(app, svc.Cron)

	logger.Info("server starting", zap.String("port", cfg.Port), zap.String("mode", cfg.AppMode))
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

// gracefulShutdown stops the scheduler and drains in-flight requests on SIGINT/SIGTERM
func gracefulShutdown(app *fiber.App, cron *services.CronService) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	cron.Stop()
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	logger.Info("server stopped gracefully")
}
