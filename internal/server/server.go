package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/invoicekit/internal/config"
	"github.com/smallbiznis/invoicekit/internal/invoice"
	invoicedomain "github.com/smallbiznis/invoicekit/internal/invoice/domain"
	"github.com/smallbiznis/invoicekit/internal/invoice/render"
	"github.com/smallbiznis/invoicekit/internal/observability"
	obsmiddleware "github.com/smallbiznis/invoicekit/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/invoicekit/internal/observability/metrics"
	obstracing "github.com/smallbiznis/invoicekit/internal/observability/tracing"
	"github.com/smallbiznis/invoicekit/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	invoice.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, corsOrigins []string) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
		SlowRequest:     time.Second,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	if mw := corsMiddleware(corsOrigins); mw != nil {
		r.Use(mw)
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics, cfg.CORSAllowedOrigins)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	invoiceSvc   invoicedomain.Service
	renderer     render.Renderer
	obsMetrics   *obsmetrics.Metrics
	writeLimiter *ratelimit.InvoiceWriteLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	InvoiceSvc   invoicedomain.Service
	Renderer     render.Renderer
	ObsMetrics   *obsmetrics.Metrics           `optional:"true"`
	WriteLimiter *ratelimit.InvoiceWriteLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		invoiceSvc:   p.InvoiceSvc,
		renderer:     p.Renderer,
		obsMetrics:   p.ObsMetrics,
		writeLimiter: p.WriteLimiter,
	}

	svc.registerInvoiceRoutes()
	svc.registerDevRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerInvoiceRoutes() {
	invoices := s.engine.Group("/invoices")

	invoices.GET("/", s.ListInvoices)
	invoices.POST("/", s.InvoiceWriteRateLimit(), s.CreateInvoice)
	invoices.POST("/batch_delete/", s.InvoiceWriteRateLimit(), s.BatchDeleteInvoices)
	invoices.GET("/:id/", s.GetInvoiceByID)
	invoices.PUT("/:id/", s.InvoiceWriteRateLimit(), s.UpdateInvoice)
	invoices.DELETE("/:id/", s.InvoiceWriteRateLimit(), s.DeleteInvoice)
	invoices.GET("/:id/pdf/", s.GetInvoicePDF)
}

func (s *Server) registerDevRoutes() {
	if s.cfg.IsProduction() {
		return
	}
	s.engine.POST("/internal/test/cleanup", s.TestCleanup)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
