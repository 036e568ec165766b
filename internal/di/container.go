// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"aipreview/internal/config"
	"aipreview/internal/database"
	"aipreview/internal/observability"
	"aipreview/internal/services"
	contextutils "aipreview/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetWorkflowService() (*services.WorkflowService, error)
	GetCaseService() (*services.CaseService, error)
	GetActivityService() (*services.ActivityService, error)
	GetFeedbackService() (*services.FeedbackService, error)
	GetAccountabilityService() (*services.AccountabilityService, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(_ context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	// Initialize database
	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	sc.initializeServices()

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetWorkflowService returns the submission workflow service
func (sc *ServiceContainer) GetWorkflowService() (*services.WorkflowService, error) {
	return GetServiceAs[*services.WorkflowService](sc, "workflow")
}

// GetCaseService returns the administrative case service
func (sc *ServiceContainer) GetCaseService() (*services.CaseService, error) {
	return GetServiceAs[*services.CaseService](sc, "case")
}

// GetActivityService returns the activity audit service
func (sc *ServiceContainer) GetActivityService() (*services.ActivityService, error) {
	return GetServiceAs[*services.ActivityService](sc, "activity")
}

// GetFeedbackService returns the feedback service
func (sc *ServiceContainer) GetFeedbackService() (*services.FeedbackService, error) {
	return GetServiceAs[*services.FeedbackService](sc, "feedback")
}

// GetAccountabilityService returns the accountability service
func (sc *ServiceContainer) GetAccountabilityService() (*services.AccountabilityService, error) {
	return GetServiceAs[*services.AccountabilityService](sc, "accountability")
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup handles shutdown of all services
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error

	// Shutdown lifecycle services first
	for name := range sc.services {
		if lifecycleService, ok := sc.services[name].(interface{ Shutdown(context.Context) error }); ok {
			sc.logger.Info(ctx, "Shutting down service", map[string]interface{}{"service": name})
			if err := lifecycleService.Shutdown(ctx); err != nil {
				sc.logger.Error(ctx, "Failed to shutdown service", err, map[string]interface{}{"service": name})
				errors = append(errors, contextutils.WrapErrorf(err, "service %s shutdown failed", name))
			}
		}
	}

	// Shutdown in reverse order of initialization
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices() {
	// Postgres stores
	submissionStore := database.NewSubmissionStore(sc.db, sc.logger)
	reviewActionStore := database.NewReviewActionStore(sc.db, sc.logger)
	feedbackStore := database.NewFeedbackStore(sc.db, sc.logger)
	activityStore := database.NewActivityLogStore(sc.db, sc.logger)
	documentStore := database.NewUploadedFileStore(sc.db, sc.logger)
	profileStore := database.NewProfileStore(sc.db, sc.logger)
	directoryStore := database.NewDirectoryStore(sc.db, sc.logger)

	// Activity service first; every mutation records through it
	activityService := services.NewActivityService(activityStore, profileStore, directoryStore, sc.cfg.Audit, sc.logger)
	sc.services["activity"] = activityService

	workflowService := services.NewWorkflowService(submissionStore, reviewActionStore, feedbackStore, activityService, sc.logger)
	sc.services["workflow"] = workflowService

	caseService := services.NewCaseService(submissionStore, reviewActionStore, activityService, sc.logger)
	sc.services["case"] = caseService

	feedbackService := services.NewFeedbackService(submissionStore, reviewActionStore, feedbackStore, activityService, sc.logger)
	sc.services["feedback"] = feedbackService

	accountabilityService := services.NewAccountabilityService(submissionStore, reviewActionStore, documentStore, profileStore, directoryStore, sc.logger)
	sc.services["accountability"] = accountabilityService
}
