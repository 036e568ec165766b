package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"aipreview/internal/observability"
	contextutils "aipreview/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorRecoveryConfig configures panic recovery and circuit breaking
type ErrorRecoveryConfig struct {
	// EnableCircuitBreaker enables circuit breaker pattern
	EnableCircuitBreaker bool
	// CircuitBreakerThreshold specifies failure threshold for circuit breaker
	CircuitBreakerThreshold int
	// CircuitBreakerTimeout specifies how long to wait before retrying after circuit opens
	CircuitBreakerTimeout time.Duration
}

// DefaultErrorRecoveryConfig returns a default error recovery configuration
func DefaultErrorRecoveryConfig() *ErrorRecoveryConfig {
	return &ErrorRecoveryConfig{
		EnableCircuitBreaker:    false,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
	}
}

// circuitBreakerState represents the state of a circuit breaker
type circuitBreakerState int

const (
	circuitClosed circuitBreakerState = iota
	circuitOpen
	circuitHalfOpen
)

// circuitBreaker tracks failures and manages circuit state
type circuitBreaker struct {
	state       circuitBreakerState
	failures    int
	lastFailure time.Time
	config      *ErrorRecoveryConfig
}

func newCircuitBreaker(config *ErrorRecoveryConfig) *circuitBreaker {
	return &circuitBreaker{
		state:  circuitClosed,
		config: config,
	}
}

// canExecute checks if the circuit breaker allows execution
func (cb *circuitBreaker) canExecute() bool {
	switch cb.state {
	case circuitClosed:
		return true
	case circuitOpen:
		if time.Since(cb.lastFailure) > cb.config.CircuitBreakerTimeout {
			cb.state = circuitHalfOpen
			return true
		}
		return false
	case circuitHalfOpen:
		return true
	default:
		return false
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.failures = 0
	cb.state = circuitClosed
}

func (cb *circuitBreaker) recordFailure() {
	cb.failures++
	cb.lastFailure = time.Now()

	if cb.failures >= cb.config.CircuitBreakerThreshold {
		cb.state = circuitOpen
	}
}

// ErrorRecoveryMiddleware converts panics into structured 500 responses and,
// when enabled, sheds load once the failure threshold trips.
func ErrorRecoveryMiddleware(logger *observability.Logger, config *ErrorRecoveryConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultErrorRecoveryConfig()
	}

	var cb *circuitBreaker
	if config.EnableCircuitBreaker {
		cb = newCircuitBreaker(config)
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				stackTrace := string(debug.Stack())
				if logger != nil {
					logger.Error(c.Request.Context(), "Panic recovered", fmt.Errorf("panic: %v", err),
						map[string]interface{}{"stack": stackTrace, "path": c.Request.URL.Path})
				}

				appErr := contextutils.NewAppError(
					contextutils.ErrorCodeInternalError,
					contextutils.SeverityFatal,
					"Internal server error",
					"A panic occurred while processing the request",
				)
				if gin.Mode() == gin.DebugMode {
					appErr.Details = fmt.Sprintf("%s\nStack trace: %s", appErr.Details, stackTrace)
				}

				HandleAppError(c, appErr)
				c.Abort()
			}
		}()

		if cb != nil && !cb.canExecute() {
			ServiceUnavailable(c, "Service temporarily unavailable due to high error rate")
			c.Abort()
			return
		}

		c.Next()

		if cb != nil {
			if c.Writer.Status() >= 500 {
				cb.recordFailure()
			} else if cb.state == circuitHalfOpen {
				cb.recordSuccess()
			}
		}
	}
}

// HandleAppError handles any AppError and sends appropriate HTTP response
func HandleAppError(c *gin.Context, err error) {
	var appErr *contextutils.AppError
	if contextutils.AsError(err, &appErr) {
		StandardizeAppError(c, appErr)
		return
	}
	StandardizeHTTPError(c, http.StatusInternalServerError, "Internal server error", err.Error())
}

// StandardizeAppError sends a structured error response using AppError
func StandardizeAppError(c *gin.Context, err *contextutils.AppError) {
	statusCode := mapErrorCodeToHTTPStatus(err.Code)

	errorJSON := err.ToJSON()
	errorJSON["retryable"] = contextutils.IsRetryable(err)

	c.JSON(statusCode, errorJSON)
}

// StandardizeHTTPError creates consistent HTTP error responses with structured error information
func StandardizeHTTPError(c *gin.Context, _ int, message, details string) {
	appErr := contextutils.NewAppError(
		contextutils.ErrorCodeInternalError,
		contextutils.SeverityError,
		message,
		details,
	)
	StandardizeAppError(c, appErr)
}

// ServiceUnavailable sends a 503 Service Unavailable error with a standardized payload
func ServiceUnavailable(c *gin.Context, msg string) {
	appErr := contextutils.NewAppError(
		contextutils.ErrorCodeStoreUnavailable,
		contextutils.SeverityError,
		msg,
		"",
	)
	StandardizeAppError(c, appErr)
}

// mapErrorCodeToHTTPStatus maps taxonomy codes to HTTP status codes
func mapErrorCodeToHTTPStatus(code contextutils.ErrorCode) int {
	switch code {
	case contextutils.ErrorCodeInvalidInput, contextutils.ErrorCodeMissingRequired,
		contextutils.ErrorCodeValidationFailed:
		return http.StatusBadRequest

	case contextutils.ErrorCodeUnauthorized, contextutils.ErrorCodeSessionExpired:
		return http.StatusUnauthorized

	case contextutils.ErrorCodeForbidden:
		return http.StatusForbidden

	case contextutils.ErrorCodeRecordNotFound:
		return http.StatusNotFound

	// Stale-state rejections are conflicts: the request was well-formed but
	// the record is no longer in the state it targeted.
	case contextutils.ErrorCodeInvalidTransition, contextutils.ErrorCodeConflict,
		contextutils.ErrorCodeRecordExists:
		return http.StatusConflict

	case contextutils.ErrorCodeTimeout:
		return http.StatusRequestTimeout

	case contextutils.ErrorCodeStoreUnavailable:
		return http.StatusServiceUnavailable

	case contextutils.ErrorCodeDatabaseQuery, contextutils.ErrorCodeDatabaseTransaction,
		contextutils.ErrorCodeForeignKeyViolation, contextutils.ErrorCodeInternalError:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}
