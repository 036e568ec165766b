package observability

import (
	"context"
	"os"

	"aipreview/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// SetupObservability initializes tracing and logging for a service
func SetupObservability(cfg *config.OpenTelemetryConfig, serviceName string) (result0 trace.TracerProvider, result1 *Logger, err error) {
	if serviceName != "" {
		cfg.ServiceName = serviceName
	}

	var tp trace.TracerProvider

	if err := os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName); err != nil {
		return nil, nil, err
	}
	if err := os.Setenv("OTEL_SERVICE_VERSION", cfg.ServiceVersion); err != nil {
		return nil, nil, err
	}

	logger := NewLogger(cfg)

	if cfg.EnableTracing {
		tp, err = InitTracing(cfg)
		if err != nil {
			return nil, nil, err
		}
		otel.SetTracerProvider(tp)
		InitPropagators()
		InitGlobalTracer()

		logger.Info(context.Background(), "Tracing enabled", map[string]interface{}{"service_name": cfg.ServiceName})
	}

	return tp, logger, nil
}
