package observability

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var globalTracer trace.Tracer

// InitGlobalTracer initializes the global tracer for the application.
func InitGlobalTracer() {
	globalTracer = otel.Tracer("aipreview")
}

// GetGlobalTracer returns the global tracer instance for the application.
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		// Fallback to default tracer if not initialized
		globalTracer = otel.Tracer("aipreview")
	}
	return globalTracer
}

// TraceFunction starts a new span with a descriptive name for the given service and function.
func TraceFunction(ctx context.Context, serviceName, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := GetGlobalTracer()
	spanName := fmt.Sprintf("%s.%s", serviceName, functionName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attributes...))
}

// TraceWorkflowFunction starts a new span for a workflow service function.
func TraceWorkflowFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "workflow", functionName, attributes...)
}

// TraceCaseFunction starts a new span for a review case service function.
func TraceCaseFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "case", functionName, attributes...)
}

// TraceActivityFunction starts a new span for an activity log service function.
func TraceActivityFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "activity", functionName, attributes...)
}

// TraceAccountabilityFunction starts a new span for an accountability resolver function.
func TraceAccountabilityFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "accountability", functionName, attributes...)
}

// TraceFeedbackFunction starts a new span for a feedback service function.
func TraceFeedbackFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "feedback", functionName, attributes...)
}

// TraceRevisionFunction starts a new span for a revision threading function.
func TraceRevisionFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "revision", functionName, attributes...)
}

// TraceHandlerFunction starts a new span for a handler function.
func TraceHandlerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "handler", functionName, attributes...)
}

// TraceDatabaseFunction starts a new span for a database function.
func TraceDatabaseFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "database", functionName, attributes...)
}

// AttributeSubmissionID returns a tracing attribute for a submission ID.
func AttributeSubmissionID(id uuid.UUID) attribute.KeyValue {
	return attribute.String("submission.id", id.String())
}

// AttributeActorID returns a tracing attribute for the acting user's ID.
func AttributeActorID(id uuid.UUID) attribute.KeyValue {
	return attribute.String("actor.id", id.String())
}

// AttributeActorRole returns a tracing attribute for the acting user's role.
func AttributeActorRole(role string) attribute.KeyValue {
	return attribute.String("actor.role", role)
}

// AttributeStatus returns a tracing attribute for a submission status.
func AttributeStatus(status string) attribute.KeyValue {
	return attribute.String("submission.status", status)
}

// AttributeAction returns a tracing attribute for a review or log action name.
func AttributeAction(action string) attribute.KeyValue {
	return attribute.String("action", action)
}

// AttributeFiscalYear returns a tracing attribute for a fiscal year.
func AttributeFiscalYear(year int) attribute.KeyValue {
	return attribute.Int("fiscal_year", year)
}

// AttributePage returns a tracing attribute for a page value.
func AttributePage(page int) attribute.KeyValue {
	return attribute.Int("page", page)
}

// AttributePageSize returns a tracing attribute for a page size value.
func AttributePageSize(size int) attribute.KeyValue {
	return attribute.Int("page_size", size)
}

// AttributeSearch returns a tracing attribute for a search value.
func AttributeSearch(search string) attribute.KeyValue {
	return attribute.String("search", search)
}
