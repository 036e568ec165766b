// Package main provides the main entry point for the AIP review backend server.
// It sets up the HTTP server, database connections, middleware, and API routes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aipreview/internal/config"
	"aipreview/internal/di"
	"aipreview/internal/handlers"
	"aipreview/internal/observability"
	contextutils "aipreview/internal/utils"

	"github.com/gin-gonic/gin"
)

// Application encapsulates the main application logic and can be tested
type Application struct {
	container di.ServiceContainerInterface
	router    *gin.Engine
}

// NewApplication creates a new application instance
func NewApplication(container di.ServiceContainerInterface) (*Application, error) {
	workflowService, err := container.GetWorkflowService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get workflow service")
	}

	caseService, err := container.GetCaseService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get case service")
	}

	activityService, err := container.GetActivityService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get activity service")
	}

	feedbackService, err := container.GetFeedbackService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get feedback service")
	}

	accountabilityService, err := container.GetAccountabilityService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get accountability service")
	}

	// Use the router factory
	router := handlers.NewRouter(
		container.GetConfig(),
		workflowService,
		caseService,
		activityService,
		feedbackService,
		accountabilityService,
		container.GetLogger(),
	)

	return &Application{
		container: container,
		router:    router,
	}, nil
}

// Run starts the application and returns an error if it fails to start
func (a *Application) Run(ctx context.Context, port string) error {
	serverErr := make(chan error, 1)
	go func() {
		if err := a.router.Run(":" + port); err != nil {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil // Context cancelled, graceful shutdown
	case err := <-serverErr:
		return contextutils.WrapError(err, "server failed")
	}
}

// Shutdown gracefully shuts down the application
func (a *Application) Shutdown(ctx context.Context) error {
	return a.container.Shutdown(ctx)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup observability (tracing/logging)
	tp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "aip-review")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if tp != nil {
			if shutdownTP, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
				if err := shutdownTP.Shutdown(shutdownCtx); err != nil {
					logger.Warn(ctx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
				}
			}
		}
	}()

	logger.Info(ctx, "Starting AIP review service", map[string]interface{}{
		"port":     cfg.Server.Port,
		"logLevel": cfg.Server.LogLevel,
	})

	// Initialize dependency injection container
	container := di.NewServiceContainer(cfg, logger)

	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, nil)
		os.Exit(1)
	}

	// Create application instance
	app, err := NewApplication(container)
	if err != nil {
		logger.Error(ctx, "Failed to create application", err, nil)
		os.Exit(1)
	}

	// Start application in a goroutine
	appErr := make(chan error, 1)
	go func() {
		if err := app.Run(ctx, cfg.Server.Port); err != nil {
			appErr <- err
		}
	}()

	// Wait for shutdown signal or application error
	select {
	case <-shutdownCh:
		logger.Info(ctx, "Received shutdown signal, shutting down gracefully", nil)
	case err := <-appErr:
		logger.Error(ctx, "Application failed", err, nil)
		os.Exit(1)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Error during application shutdown", err, nil)
		os.Exit(1)
	}

	logger.Info(ctx, "Shutdown completed successfully", nil)
}
