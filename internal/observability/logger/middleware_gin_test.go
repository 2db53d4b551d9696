package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/invoicekit/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestGinMiddlewareLogsRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logs := observe(t)

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{
		ErrorClassifier: func(err error) (string, string) { return "validation_error", "required" },
	}))
	r.POST("/invoices/:id/", func(c *gin.Context) {
		_ = c.Error(errors.New("bad input"))
		c.Status(http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodPost, "/invoices/123/", nil)
	req.Header.Set("X-Request-Id", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get("X-Request-Id"))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "/invoices/:id/", fields["route"])
	assert.Equal(t, "123", fields["invoice_id"])
	assert.Equal(t, "validation_error", fields["error_type"])
	assert.Equal(t, "required", fields["error_code"])
}

func TestGinMiddlewareGeneratesRequestIDAndQuietsProbes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logs := observe(t)

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
}

func TestWithInvoice(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	WithInvoice(zap.New(core), " 42 ", "INV001").Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "42", fields["invoice_id"])
	assert.Equal(t, "INV001", fields["invoice_number"])
	assert.Nil(t, WithInvoice(nil, "1", "x"))
}

func TestGormLoggerConfigFor(t *testing.T) {
	assert.Equal(t, gormlogger.Info, GormLoggerConfigFor("DEBUG", 0).Level)
	assert.Equal(t, gormlogger.Warn, GormLoggerConfigFor("info", 0).Level)
	assert.Equal(t, gormlogger.Silent, GormLoggerConfigFor("off", 0).Level)

	cfg := GormLoggerConfigFor("info", time.Second)
	assert.Equal(t, time.Second, cfg.SlowThreshold)
	assert.True(t, cfg.IgnoreRecordNotFound)
}

func TestTableFromSQL(t *testing.T) {
	assert.Equal(t, "invoice_line_items", tableFromSQL(`DELETE FROM "invoice_line_items" WHERE invoice_id IN (1)`))
	assert.Equal(t, "invoices", tableFromSQL(`SELECT * FROM "invoices"`))
	assert.Equal(t, "other", tableFromSQL(`SELECT 1`))
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/health", 500, "", 0, 0))
	assert.Equal(t, zapcore.ErrorLevel, requestLevel("/invoices/", 500, "internal_error", 0, 0))
	assert.Equal(t, zapcore.WarnLevel, requestLevel("/invoices/", 400, "validation_error", 0, 0))
	assert.Equal(t, zapcore.InfoLevel, requestLevel("/invoices/:id/", 404, "not_found", 0, 0))
	assert.Equal(t, zapcore.WarnLevel, requestLevel("/invoices/", 200, "", 2*time.Second, time.Second))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "loud"})
	assert.Error(t, err)
}

func TestWithContextAddsRequestFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := obscontext.WithClientIP(obscontext.WithRequestID(context.Background(), "req-9"), "10.0.0.1")

	WithContext(ctx, zap.New(core)).Info("hello")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "10.0.0.1", fields["client_ip"])
	assert.NotContains(t, fields, "trace_id")
}

func TestGormLoggerTrace(t *testing.T) {
	logs := observe(t)
	l := NewGormLogger(GormLoggerConfigFor("info", 50*time.Millisecond))
	ctx := context.Background()
	stmt := func() (string, int64) { return `SELECT * FROM "invoices" WHERE id = 1`, 0 }

	l.Trace(ctx, time.Now(), stmt, gormlogger.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), stmt, nil)
	assert.Zero(t, logs.Len())

	l.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	l.Trace(ctx, time.Now(), stmt, errors.New("boom"))
	entries := logs.FilterMessage("gorm.query").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, true, entries[0].ContextMap()["slow"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "SELECT", entries[1].ContextMap()["operation"])
	assert.Equal(t, "invoices", entries[1].ContextMap()["table"])
}
