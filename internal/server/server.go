// Package server exposes the engine over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/cargoledger/internal/config"
	invoicedomain "github.com/railzwaylabs/cargoledger/internal/invoice/domain"
	jobdomain "github.com/railzwaylabs/cargoledger/internal/job/domain"
	"github.com/railzwaylabs/cargoledger/internal/migration"
	"github.com/railzwaylabs/cargoledger/internal/observability"
	paymentdomain "github.com/railzwaylabs/cargoledger/internal/payment/domain"
	quotedomain "github.com/railzwaylabs/cargoledger/internal/quote/domain"
	ratingservice "github.com/railzwaylabs/cargoledger/internal/rating/service"
	waybilldomain "github.com/railzwaylabs/cargoledger/internal/waybill/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(Start),
)

type schemaGate interface {
	MustBeActive(ctx context.Context) error
}

type quotePreviewer interface {
	Preview(ctx context.Context, req ratingservice.PreviewRequest) (*ratingservice.PreviewResponse, error)
}

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	DB      *gorm.DB
	Redis   *redis.Client          `optional:"true"`
	Metrics *observability.Metrics `optional:"true"`
	Gate    *migration.Gate        `optional:"true"`

	QuoteSvc   quotedomain.Service
	Rater      *ratingservice.Service
	WaybillSvc waybilldomain.Service
	InvoiceSvc invoicedomain.Service
	PaymentSvc paymentdomain.Service
	JobSvc     jobdomain.Service
}

type Server struct {
	cfg     config.Config
	log     *zap.Logger
	engine  *gin.Engine
	db      *gorm.DB
	redis   *redis.Client
	metrics *observability.Metrics

	schemaGate schemaGate
	quoteSvc   quotedomain.Service
	previewer  quotePreviewer
	waybillSvc waybilldomain.Service
	invoiceSvc invoicedomain.Service
	paymentSvc paymentdomain.Service
	jobSvc     jobdomain.Service
}

func New(p Params) *Server {
	if p.Cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		cfg:        p.Cfg,
		log:        p.Log.Named("server"),
		db:         p.DB,
		redis:      p.Redis,
		metrics:    p.Metrics,
		quoteSvc:   p.QuoteSvc,
		waybillSvc: p.WaybillSvc,
		invoiceSvc: p.InvoiceSvc,
		paymentSvc: p.PaymentSvc,
		jobSvc:     p.JobSvc,
	}
	if p.Gate != nil {
		s.schemaGate = p.Gate
	}
	if p.Rater != nil {
		s.previewer = p.Rater
	}
	s.engine = s.newEngine()
	return s
}

func (s *Server) newEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), tracing("/health", "/metrics"), requestLogger(s.log))
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, &APIError{Status: http.StatusNotFound, Code: "route_not_found", Message: c.Request.URL.Path})
	})
	s.engine = engine
	s.RegisterSystemRoutes()
	s.RegisterAPIRoutes()
	return engine
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")

	quotes := api.Group("/quotes")
	quotes.POST("", s.CreateQuote)
	quotes.GET("", s.ListQuotes)
	quotes.POST("/resolve", s.ResolveQuote)
	quotes.GET("/:id", s.GetQuote)
	quotes.PUT("/:id", s.UpdateQuote)
	quotes.DELETE("/:id", s.DeleteQuote)

	api.POST("/waybills", s.CreateWaybill)
	api.GET("/waybills/:id", s.GetWaybill)

	api.POST("/recompute", s.SubmitRecompute)
	api.POST("/invoices/generate", s.SubmitInvoiceGeneration)
	api.GET("/jobs/:id", s.GetJob)

	invoices := api.Group("/invoices")
	invoices.GET("", s.ListInvoices)
	invoices.GET("/:id", s.GetInvoice)
	invoices.POST("/:id/recalculate", s.RecalculateInvoice)
	invoices.DELETE("/:id", s.DeleteInvoice)
	invoices.PATCH("/:id/paid", s.SetInvoicePaid)

	supplierInvoices := api.Group("/supplier-invoices")
	supplierInvoices.GET("", s.ListSupplierInvoices)
	supplierInvoices.GET("/:id", s.GetSupplierInvoice)
	supplierInvoices.POST("/:id/recalculate", s.RecalculateSupplierInvoice)
	supplierInvoices.DELETE("/:id", s.DeleteSupplierInvoice)
	supplierInvoices.PATCH("/:id/paid", s.SetSupplierInvoicePaid)

	payments := api.Group("/payments")
	payments.POST("", s.CreatePayment)
	payments.GET("/:id", s.GetPayment)
	payments.PUT("/:id", s.UpdatePayment)
	payments.DELETE("/:id", s.DeletePayment)
}

// Start binds the HTTP listener when the fx app starts and drains it on stop.
func Start(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
