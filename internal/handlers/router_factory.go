package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"aipreview/internal/config"
	"aipreview/internal/middleware"
	"aipreview/internal/models"
	"aipreview/internal/observability"
	"aipreview/internal/serviceinterfaces"
	"aipreview/internal/version"
)

// NewRouter creates a new router factory with all the necessary middleware and routes
func NewRouter(
	cfg *config.Config,
	workflowService serviceinterfaces.WorkflowService,
	caseService serviceinterfaces.CaseService,
	activityService serviceinterfaces.ActivityService,
	feedbackService serviceinterfaces.FeedbackService,
	accountabilityService serviceinterfaces.AccountabilityService,
	logger *observability.Logger,
) *gin.Engine {
	// Setup Gin mode
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())

	// Add HTTP request logging middleware using our observability logger
	router.Use(func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		// Log request details using our observability logger
		latency := time.Since(start)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method
		path := c.Request.URL.Path

		// Create structured log entry
		fields := map[string]interface{}{
			"http.method":      method,
			"http.path":        path,
			"http.status_code": statusCode,
			"http.latency_ms":  latency.Milliseconds(),
			"http.client_ip":   clientIP,
			"http.user_agent":  c.Request.UserAgent(),
		}

		// Add error message if present
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		if statusCode >= 400 {
			if c.Writer.Size() > 0 {
				fields["http.response_size"] = c.Writer.Size()
			}
			if statusCode >= 500 {
				fields["http.error_type"] = "server_error"
			} else {
				fields["http.error_type"] = "client_error"
			}
		}

		// Use appropriate log level based on status code
		if statusCode >= 500 {
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		} else if statusCode >= 400 {
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		} else {
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	})

	// Health check endpoint (defined before any middleware)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "aip-review"})
	})

	// Add OpenTelemetry middleware for HTTP tracing and context propagation with automatic error attributes
	router.Use(observability.GinMiddlewareWithErrorHandling("aip-review"))

	// Panic recovery with structured error responses and optional circuit breaking
	router.Use(middleware.ErrorRecoveryMiddleware(logger, middleware.DefaultErrorRecoveryConfig()))

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	// Setup CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Initialize handlers
	submissionHandler := NewSubmissionHandler(workflowService, cfg, logger)
	caseHandler := NewCaseHandler(caseService, cfg, logger)
	activityHandler := NewActivityHandler(activityService, cfg, logger)
	feedbackHandler := NewFeedbackHandler(feedbackService, cfg, logger)
	accountabilityHandler := NewAccountabilityHandler(accountabilityService, cfg, logger)

	// V1 routes
	v1 := router.Group("/v1")
	{
		// Version endpoint (no auth)
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"service":   "aip-review",
				"version":   version.Version,
				"commit":    version.Commit,
				"buildTime": version.BuildTime,
			})
		})

		submissions := v1.Group("/submissions")
		submissions.Use(middleware.RequireAuth(&cfg.Auth))
		{
			submissions.POST("", submissionHandler.CreateDraft)
			submissions.GET("", submissionHandler.ListSubmissions)
			submissions.GET("/:id", submissionHandler.GetSubmission)
			submissions.DELETE("/:id", submissionHandler.DeleteDraft)

			// Workflow transitions
			submissions.POST("/:id/submit", submissionHandler.Submit)
			submissions.POST("/:id/start-review", submissionHandler.StartReview)
			submissions.POST("/:id/request-revision", submissionHandler.RequestRevision)
			submissions.POST("/:id/publish", submissionHandler.Publish)
			submissions.POST("/:id/withdraw", submissionHandler.Withdraw)
			submissions.POST("/:id/revision-reply", submissionHandler.PostRevisionReply)

			// Review claim inspection
			submissions.GET("/:id/claim", caseHandler.GetClaim)

			// Revision conversation and public feedback
			submissions.GET("/:id/revision-cycles", feedbackHandler.GetRevisionCycles)
			submissions.GET("/:id/feedback", feedbackHandler.ListFeedback)
			submissions.POST("/:id/feedback", feedbackHandler.PostFeedback)

			// Accountability facts
			submissions.GET("/:id/accountability", accountabilityHandler.GetAccountability)
		}

		feedback := v1.Group("/feedback")
		feedback.Use(middleware.RequireAuth(&cfg.Auth))
		{
			feedback.GET("/:id/thread", feedbackHandler.GetThread)
			feedback.POST("/:id/respond", feedbackHandler.RespondToFeedback)
		}

		activity := v1.Group("/activity")
		activity.Use(middleware.RequireAuth(&cfg.Auth))
		{
			activity.GET("", activityHandler.GetFeed)
			activity.GET("/:table/:id", middleware.RequireRole(
				models.RoleBarangayOfficial, models.RoleCityOfficial,
				models.RoleMunicipalOfficial, models.RoleAdmin,
			), activityHandler.GetEntityHistory)
		}

		// Admin case track
		admin := v1.Group("/admin")
		admin.Use(middleware.RequireAuth(&cfg.Auth))
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/submissions/:id/force-unclaim", caseHandler.ForceUnclaim)
			admin.POST("/submissions/:id/cancel", caseHandler.Cancel)
			admin.POST("/submissions/:id/archive", caseHandler.Archive)
			admin.POST("/submissions/:id/unarchive", caseHandler.Unarchive)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return router
}
