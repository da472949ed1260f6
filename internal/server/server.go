package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgerline/billing/internal/audit"
	"github.com/ledgerline/billing/internal/clock"
	"github.com/ledgerline/billing/internal/config"
	"github.com/ledgerline/billing/internal/documents"
	documentsdomain "github.com/ledgerline/billing/internal/documents/domain"
	"github.com/ledgerline/billing/internal/downloadtoken"
	tokendomain "github.com/ledgerline/billing/internal/downloadtoken/domain"
	"github.com/ledgerline/billing/internal/invoice"
	invoicedomain "github.com/ledgerline/billing/internal/invoice/domain"
	"github.com/ledgerline/billing/internal/observability"
	"github.com/ledgerline/billing/internal/providers"
	"github.com/ledgerline/billing/internal/receipt"
	receiptdomain "github.com/ledgerline/billing/internal/receipt/domain"
	"github.com/ledgerline/billing/internal/sequence"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	clock.Module,
	observability.Module,
	fx.Provide(NewEngine),
	audit.Module,
	sequence.Module,
	invoice.Module,
	receipt.Module,
	downloadtoken.Module,
	providers.Module,
	documents.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
	invoiceSvc   invoicedomain.Service
	receiptSvc   receiptdomain.Service
	tokenSvc     tokendomain.Service
	documentsSvc documentsdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	InvoiceSvc   invoicedomain.Service
	ReceiptSvc   receiptdomain.Service
	TokenSvc     tokendomain.Service
	DocumentsSvc documentsdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		invoiceSvc:   p.InvoiceSvc,
		receiptSvc:   p.ReceiptSvc,
		tokenSvc:     p.TokenSvc,
		documentsSvc: p.DocumentsSvc,
	}

	svc.registerAPIRoutes()
	svc.registerPublicRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", UserRequired())

	// -------- Invoices --------
	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.PATCH("/invoices/:id", s.UpdateInvoice)
	api.DELETE("/invoices/:id", s.DeleteInvoice)
	api.POST("/invoices/:id/items", s.AddInvoiceItem)
	api.DELETE("/invoices/:id/items/:itemId", s.RemoveInvoiceItem)
	api.POST("/invoices/:id/finalize", s.FinalizeInvoice)
	api.POST("/invoices/:id/send", s.MarkInvoiceSent)
	api.POST("/invoices/:id/pay", s.MarkInvoicePaid)
	api.POST("/invoices/:id/cancel", s.CancelInvoice)
	api.POST("/invoices/:id/download-link", s.RequestInvoiceDownload)
	api.POST("/invoices/:id/email-link", s.EmailInvoiceDownloadLink)

	// -------- Receipts --------
	api.POST("/receipts", s.CreateReceipt)
	api.POST("/receipts/invoice-payment", s.CreateReceiptFromInvoicePayment)
	api.GET("/receipts", s.ListReceipts)
	api.GET("/receipts/:id", s.GetReceiptByID)
	api.POST("/receipts/:id/send", s.MarkReceiptSent)
	api.POST("/receipts/:id/pay", s.MarkReceiptPaid)
	api.POST("/receipts/:id/cancel", s.CancelReceipt)
	api.POST("/receipts/:id/download-link", s.RequestReceiptDownload)
	api.POST("/receipts/:id/email-link", s.EmailReceiptDownloadLink)

	// -------- Download tokens --------
	api.DELETE("/download-tokens/:id", s.RevokeDownloadToken)
}

func (s *Server) registerPublicRoutes() {
	// Token-bearing download links need no session.
	s.engine.GET("/d/:secret", s.RedeemDownload)
}
