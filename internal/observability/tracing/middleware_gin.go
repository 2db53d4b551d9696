package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/invoicekit/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "invoicekit/http"

// invoiceOperations names spans after the invoice operation a route serves.
var invoiceOperations = map[string]string{
	"GET /invoices/":               "invoice.list",
	"POST /invoices/":              "invoice.create",
	"POST /invoices/batch_delete/": "invoice.batch_delete",
	"GET /invoices/:id/":           "invoice.get",
	"PUT /invoices/:id/":           "invoice.update",
	"DELETE /invoices/:id/":        "invoice.delete",
	"GET /invoices/:id/pdf/":       "invoice.render_pdf",
	"POST /internal/test/cleanup":  "invoice.test_cleanup",
}

// OperationName returns the span name for method and route.
func OperationName(method, route string) string {
	method = strings.ToUpper(method)
	if op, ok := invoiceOperations[method+" "+route]; ok {
		return op
	}
	if route == "" {
		route = "unknown"
	}
	return "HTTP " + method + " " + route
}

// GinMiddleware starts a server span per request. Probe routes are not traced.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "/health" || route == "/metrics" {
			c.Next()
			return
		}

		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, OperationName(c.Request.Method, route),
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		}
		if id := strings.TrimSpace(c.Param("id")); id != "" {
			attrs = append(attrs, attribute.String("invoice.id", id))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		switch {
		case status >= http.StatusInternalServerError:
			if last := c.Errors.Last(); last != nil {
				if safeErr := SafeError(last.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		case status >= http.StatusBadRequest:
			span.SetAttributes(attribute.Bool("http.client_error", true))
		}
	}
}
