package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/ledgerline/billing/internal/audit/domain"
	auditservice "github.com/ledgerline/billing/internal/audit/service"
	"github.com/ledgerline/billing/internal/clock"
	"github.com/ledgerline/billing/internal/config"
	documentsdomain "github.com/ledgerline/billing/internal/documents/domain"
	tokendomain "github.com/ledgerline/billing/internal/downloadtoken/domain"
	tokenservice "github.com/ledgerline/billing/internal/downloadtoken/service"
	invoicedomain "github.com/ledgerline/billing/internal/invoice/domain"
	invoiceservice "github.com/ledgerline/billing/internal/invoice/service"
	"github.com/ledgerline/billing/internal/providers/pdf"
	receiptdomain "github.com/ledgerline/billing/internal/receipt/domain"
	receiptservice "github.com/ledgerline/billing/internal/receipt/service"
	sequencedomain "github.com/ledgerline/billing/internal/sequence/domain"
	sequenceservice "github.com/ledgerline/billing/internal/sequence/service"
	"github.com/ledgerline/billing/internal/usercontext"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubPDF struct {
	renders int
	fail    bool
}

func (s *stubPDF) GenerateInvoice(ctx context.Context, data pdf.InvoiceData) (io.Reader, error) {
	if s.fail {
		return nil, errors.New("render blew up")
	}
	s.renders++
	return bytes.NewReader([]byte("%PDF-1.7 invoice " + data.InvoiceNumber)), nil
}

func (s *stubPDF) GenerateReceipt(ctx context.Context, data pdf.ReceiptData) (io.Reader, error) {
	if s.fail {
		return nil, errors.New("render blew up")
	}
	s.renders++
	return bytes.NewReader([]byte("%PDF-1.7 receipt " + data.ReceiptNumber)), nil
}

type stubEmail struct {
	to      []string
	subject string
	body    string
	sends   int
}

func (s *stubEmail) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	s.to = to
	s.subject = subject
	s.body = htmlBody
	s.sends++
	return nil
}

type testEnv struct {
	svc      documentsdomain.Service
	invoices invoicedomain.Service
	receipts receiptdomain.Service
	pdf      *stubPDF
	email    *stubEmail
	db       *gorm.DB
	clock    *clock.FakeClock
	ctx      context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&receiptdomain.Receipt{},
		&tokendomain.DownloadToken{},
		&sequencedomain.SequenceCounter{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		StorageDir: t.TempDir(),
		PublicURL:  "https://billing.test",
	}
	billing := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	fake := clock.NewFakeClock(time.Date(2025, time.March, 7, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	allocator := sequenceservice.NewAllocator(sequenceservice.AllocatorParam{Log: log, Billing: billing})
	auditSvc := auditservice.NewService(auditservice.ServiceParam{DB: db, Log: log, GenID: node})

	invoices := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake, Billing: billing,
		Allocator: allocator, AuditSvc: auditSvc,
	})
	receipts := receiptservice.NewService(receiptservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake, Billing: billing,
		Allocator: allocator, AuditSvc: auditSvc,
	})
	tokens := tokenservice.NewService(tokenservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake, Billing: billing,
		AuditSvc: auditSvc,
	})

	renderer := &stubPDF{}
	mailer := &stubEmail{}
	svc := NewService(ServiceParam{
		DB: db, Log: log, Config: cfg, Billing: billing, Clock: fake,
		InvoiceSvc: invoices, ReceiptSvc: receipts, TokenSvc: tokens,
		PDF: renderer, Email: mailer,
	})

	return &testEnv{
		svc:      svc,
		invoices: invoices,
		receipts: receipts,
		pdf:      renderer,
		email:    mailer,
		db:       db,
		clock:    fake,
		ctx:      usercontext.WithUserID(context.Background(), node.Generate()),
	}
}

func (e *testEnv) finalizedInvoice(t *testing.T) invoicedomain.Invoice {
	t.Helper()

	rate := decimal.RequireFromString("18")
	invoice, err := e.invoices.Create(e.ctx, invoicedomain.CreateInvoiceRequest{
		ClientName:  "Acme Traders",
		ClientEmail: "billing@acme.test",
		ClientState: "KA",
		SellerState: "KA",
		Items: []invoicedomain.LineItemInput{
			{Description: "Consulting", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(8000), TaxRate: &rate},
		},
	})
	require.NoError(t, err)

	finalized, err := e.invoices.Finalize(e.ctx, invoice.ID.String())
	require.NoError(t, err)
	return finalized
}

func (e *testEnv) paidReceipt(t *testing.T) receiptdomain.Receipt {
	t.Helper()

	receipt, err := e.receipts.CreateFromPayment(e.ctx, receiptdomain.CreateFromPaymentRequest{
		CustomerName:  "Asha Rao",
		CustomerEmail: "asha@example.test",
		Total:         decimal.RequireFromString("99.00"),
	})
	require.NoError(t, err)

	paid, err := e.receipts.MarkPaid(e.ctx, receipt.ID.String())
	require.NoError(t, err)
	return paid
}

func TestRequestInvoiceDownload_DraftNotReady(t *testing.T) {
	env := newTestEnv(t)

	rate := decimal.RequireFromString("18")
	draft, err := env.invoices.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
		ClientName: "Acme Traders",
		Items: []invoicedomain.LineItemInput{
			{Description: "Consulting", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(100), TaxRate: &rate},
		},
	})
	require.NoError(t, err)

	_, err = env.svc.RequestInvoiceDownload(env.ctx, draft.ID.String())
	assert.ErrorIs(t, err, documentsdomain.ErrResourceNotReady)
}

func TestRequestInvoiceDownload_RendersOnceAndIssuesToken(t *testing.T) {
	env := newTestEnv(t)
	invoice := env.finalizedInvoice(t)

	grant, err := env.svc.RequestInvoiceDownload(env.ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.NotEmpty(t, grant.Secret)
	assert.True(t, strings.HasPrefix(grant.URL, "https://billing.test/d/"), "url %s", grant.URL)
	assert.Equal(t, 5, grant.MaxDownloads)
	assert.Equal(t, 1, env.pdf.renders)

	var stored invoicedomain.Invoice
	require.NoError(t, env.db.First(&stored, "id = ?", invoice.ID).Error)
	assert.True(t, stored.PDFGenerated)
	assert.FileExists(t, stored.PDFPath)
	assert.Equal(t, filepath.Ext(stored.PDFPath), ".pdf")

	// A second request reuses the artifact but mints a fresh token.
	again, err := env.svc.RequestInvoiceDownload(env.ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.NotEqual(t, grant.Secret, again.Secret)
	assert.Equal(t, 1, env.pdf.renders)
}

func TestRedeem_ServesArtifact(t *testing.T) {
	env := newTestEnv(t)
	invoice := env.finalizedInvoice(t)

	grant, err := env.svc.RequestInvoiceDownload(env.ctx, invoice.ID.String())
	require.NoError(t, err)

	download, err := env.svc.Redeem(context.Background(), grant.Secret, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "invoice-INV-00001.pdf", download.Filename)
	assert.Equal(t, "application/pdf", download.ContentType)

	data, err := os.ReadFile(download.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INV-00001")
}

func TestRedeem_InvalidSecret(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Redeem(context.Background(), "bogus", "10.0.0.1")
	assert.ErrorIs(t, err, tokendomain.ErrTokenInvalid)
}

func TestRequestReceiptDownload_RequiresPaid(t *testing.T) {
	env := newTestEnv(t)

	receipt, err := env.receipts.CreateFromPayment(env.ctx, receiptdomain.CreateFromPaymentRequest{
		CustomerName: "Asha Rao",
		Total:        decimal.RequireFromString("99.00"),
	})
	require.NoError(t, err)

	_, err = env.svc.RequestReceiptDownload(env.ctx, receipt.ID.String())
	assert.ErrorIs(t, err, documentsdomain.ErrResourceNotReady)

	paid, err := env.receipts.MarkPaid(env.ctx, receipt.ID.String())
	require.NoError(t, err)

	grant, err := env.svc.RequestReceiptDownload(env.ctx, paid.ID.String())
	require.NoError(t, err)

	download, err := env.svc.Redeem(context.Background(), grant.Secret, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "receipt-"+paid.ReceiptNumber+".pdf", download.Filename)
}

func TestRenderFailure_NotReadyAndNoToken(t *testing.T) {
	env := newTestEnv(t)
	invoice := env.finalizedInvoice(t)
	env.pdf.fail = true

	_, err := env.svc.RequestInvoiceDownload(env.ctx, invoice.ID.String())
	assert.ErrorIs(t, err, documentsdomain.ErrResourceNotReady)

	var tokens int64
	require.NoError(t, env.db.Model(&tokendomain.DownloadToken{}).Count(&tokens).Error)
	assert.Zero(t, tokens)

	// The failure is transient; the next request retries the render.
	env.pdf.fail = false
	_, err = env.svc.RequestInvoiceDownload(env.ctx, invoice.ID.String())
	require.NoError(t, err)
}

func TestEmailInvoiceDownloadLink(t *testing.T) {
	env := newTestEnv(t)
	invoice := env.finalizedInvoice(t)

	grant, err := env.svc.EmailInvoiceDownloadLink(env.ctx, invoice.ID.String())
	require.NoError(t, err)

	assert.Equal(t, 1, env.email.sends)
	assert.Equal(t, []string{"billing@acme.test"}, env.email.to)
	assert.Contains(t, env.email.subject, "INV-00001")
	assert.Contains(t, env.email.body, grant.URL)
}

func TestEmailInvoiceDownloadLink_MissingRecipient(t *testing.T) {
	env := newTestEnv(t)

	rate := decimal.RequireFromString("18")
	invoice, err := env.invoices.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
		ClientName: "Acme Traders",
		Items: []invoicedomain.LineItemInput{
			{Description: "Consulting", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(100), TaxRate: &rate},
		},
	})
	require.NoError(t, err)
	_, err = env.invoices.Finalize(env.ctx, invoice.ID.String())
	require.NoError(t, err)

	_, err = env.svc.EmailInvoiceDownloadLink(env.ctx, invoice.ID.String())
	assert.ErrorIs(t, err, documentsdomain.ErrMissingRecipient)
	assert.Zero(t, env.email.sends)
}
