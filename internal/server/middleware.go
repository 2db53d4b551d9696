package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/invoicekit/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/invoicekit/internal/observability/metrics"
	"github.com/smallbiznis/invoicekit/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	rateLimitReasonClientRate        = "client-rate"
	rateLimitReasonNumberConcurrency = "invoice-number-concurrency"
)

const maxRateLimitBodyBytes int64 = 1 << 20

var registerTagNameOnce sync.Once

// useJSONFieldNames makes validator report json names such as "ids" instead
// of Go field names.
func useJSONFieldNames() {
	registerTagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
}

// corsMiddleware returns nil when no origin is allowed.
func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return nil
	}

	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-Id"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "X-Request-Id", "X-Deleted-Count", "X-Message"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cors.New(cfg)
}

type invoiceNumberKey struct {
	InvoiceNumber string `json:"invoice_number"`
}

// InvoiceWriteRateLimit throttles mutating invoice requests per client and
// rejects concurrent writes claiming the same invoice number.
func (s *Server) InvoiceWriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.writeLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		res, err := s.writeLimiter.AllowClient(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("invoice write rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			denyRateLimit(c, endpoint, rateLimitReasonClientRate, res.RetryAfter, s.obsMetrics)
			return
		}

		number, err := readInvoiceNumber(c)
		if err != nil {
			logger.FromContext(ctx).Warn("invoice write rate limit read body failed", zap.Error(err))
			AbortWithError(c, invalidRequestError())
			return
		}

		if number != "" {
			lease, err := s.writeLimiter.LockInvoiceNumber(ctx, number)
			if errors.Is(err, ratelimit.ErrLockHeld) {
				denyRateLimit(c, endpoint, rateLimitReasonNumberConcurrency, time.Second, s.obsMetrics)
				return
			}
			if err != nil {
				logger.FromContext(ctx).Warn("invoice number lock failed", zap.Error(err))
				AbortWithError(c, ErrServiceUnavailable)
				return
			}
			defer func() {
				if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
					logger.FromContext(ctx).Warn("invoice number unlock failed", zap.Error(err))
				}
			}()
		}

		s.obsMetrics.RecordRateLimitAllowed(ctx, endpoint)
		c.Next()
	}
}

func denyRateLimit(c *gin.Context, endpoint, reason string, retryAfter time.Duration, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("invoice write rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)

	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrTooManyRequests)
}

func readInvoiceNumber(c *gin.Context) (string, error) {
	if c.Request.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRateLimitBodyBytes))
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return "", nil
	}

	var payload invoiceNumberKey
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil
	}
	return strings.TrimSpace(payload.InvoiceNumber), nil
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
