package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerline/billing/internal/clock"
	"github.com/ledgerline/billing/internal/config"
	documentdomain "github.com/ledgerline/billing/internal/document/domain"
	documentsdomain "github.com/ledgerline/billing/internal/documents/domain"
	tokendomain "github.com/ledgerline/billing/internal/downloadtoken/domain"
	invoicedomain "github.com/ledgerline/billing/internal/invoice/domain"
	"github.com/ledgerline/billing/internal/observability/metrics"
	"github.com/ledgerline/billing/internal/providers/email"
	"github.com/ledgerline/billing/internal/providers/pdf"
	receiptdomain "github.com/ledgerline/billing/internal/receipt/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Config  config.Config
	Billing *config.BillingConfigHolder
	Clock   clock.Clock

	InvoiceSvc invoicedomain.Service
	ReceiptSvc receiptdomain.Service
	TokenSvc   tokendomain.Service
	PDF        pdf.Provider
	Email      email.Provider
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	cfg     config.Config
	billing *config.BillingConfigHolder
	clock   clock.Clock

	invoiceSvc invoicedomain.Service
	receiptSvc receiptdomain.Service
	tokenSvc   tokendomain.Service
	pdf        pdf.Provider
	email      email.Provider
	metrics    *metrics.Metrics
}

func NewService(p ServiceParam) documentsdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("documents.service"),

		cfg:     p.Config,
		billing: p.Billing,
		clock:   p.Clock,

		invoiceSvc: p.InvoiceSvc,
		receiptSvc: p.ReceiptSvc,
		tokenSvc:   p.TokenSvc,
		pdf:        p.PDF,
		email:      p.Email,
		metrics:    p.Metrics,
	}
}

func (s *Service) RequestInvoiceDownload(ctx context.Context, invoiceID string) (documentsdomain.DownloadGrant, error) {
	invoice, err := s.invoiceSvc.Get(ctx, invoiceID)
	if err != nil {
		return documentsdomain.DownloadGrant{}, err
	}
	if !invoiceServable(invoice.Status) {
		return documentsdomain.DownloadGrant{}, documentsdomain.ErrResourceNotReady
	}

	if err := s.ensureInvoicePDF(ctx, &invoice); err != nil {
		return documentsdomain.DownloadGrant{}, err
	}

	issued, err := s.tokenSvc.Issue(ctx, tokendomain.IssueRequest{
		UserID:    invoice.UserID,
		InvoiceID: &invoice.ID,
	})
	if err != nil {
		return documentsdomain.DownloadGrant{}, err
	}
	s.metrics.RecordTokenIssued(ctx, "invoice")

	return s.grant(issued), nil
}

func (s *Service) RequestReceiptDownload(ctx context.Context, receiptID string) (documentsdomain.DownloadGrant, error) {
	receipt, err := s.receiptSvc.Get(ctx, receiptID)
	if err != nil {
		return documentsdomain.DownloadGrant{}, err
	}
	if receipt.Status != documentdomain.StatusPaid {
		return documentsdomain.DownloadGrant{}, documentsdomain.ErrResourceNotReady
	}

	if err := s.ensureReceiptPDF(ctx, &receipt); err != nil {
		return documentsdomain.DownloadGrant{}, err
	}

	issued, err := s.tokenSvc.Issue(ctx, tokendomain.IssueRequest{
		UserID:    receipt.UserID,
		ReceiptID: &receipt.ID,
	})
	if err != nil {
		return documentsdomain.DownloadGrant{}, err
	}
	s.metrics.RecordTokenIssued(ctx, "receipt")

	return s.grant(issued), nil
}

func (s *Service) Redeem(ctx context.Context, secret, clientAddr string) (documentsdomain.Download, error) {
	token, err := s.tokenSvc.Redeem(ctx, secret, clientAddr)
	if err != nil {
		return documentsdomain.Download{}, err
	}

	var download documentsdomain.Download
	switch {
	case token.InvoiceID != nil:
		download, err = s.invoiceDownload(ctx, *token.InvoiceID)
	case token.ReceiptID != nil:
		download, err = s.receiptDownload(ctx, *token.ReceiptID)
	default:
		err = tokendomain.ErrTokenInvalid
	}
	if err != nil {
		return documentsdomain.Download{}, err
	}

	documentType := "invoice"
	if token.ReceiptID != nil {
		documentType = "receipt"
	}
	s.metrics.RecordTokenRedeemed(ctx, documentType)
	if token.Exhausted() {
		s.metrics.RecordTokenExhausted(ctx, documentType)
	}
	return download, nil
}

func (s *Service) EmailInvoiceDownloadLink(ctx context.Context, invoiceID string) (documentsdomain.DownloadGrant, error) {
	invoice, err := s.invoiceSvc.Get(ctx, invoiceID)
	if err != nil {
		return documentsdomain.DownloadGrant{}, err
	}
	if invoice.ClientEmail == "" {
		return documentsdomain.DownloadGrant{}, documentsdomain.ErrMissingRecipient
	}

	grant, err := s.RequestInvoiceDownload(ctx, invoiceID)
	if err != nil {
		return documentsdomain.DownloadGrant{}, err
	}

	number := invoice.ID.String()
	if invoice.InvoiceNumber != nil {
		number = *invoice.InvoiceNumber
	}
	subject := "Your invoice " + number
	if err := s.email.Send(ctx, []string{invoice.ClientEmail}, subject, linkBody(number, grant)); err != nil {
		return documentsdomain.DownloadGrant{}, err
	}
	s.metrics.RecordEmailSent(ctx, "invoice")

	return grant, nil
}

func (s *Service) EmailReceiptDownloadLink(ctx context.Context, receiptID string) (documentsdomain.DownloadGrant, error) {
	receipt, err := s.receiptSvc.Get(ctx, receiptID)
	if err != nil {
		return documentsdomain.DownloadGrant{}, err
	}
	if receipt.CustomerEmail == "" {
		return documentsdomain.DownloadGrant{}, documentsdomain.ErrMissingRecipient
	}

	grant, err := s.RequestReceiptDownload(ctx, receiptID)
	if err != nil {
		return documentsdomain.DownloadGrant{}, err
	}

	subject := "Your receipt " + receipt.ReceiptNumber
	if err := s.email.Send(ctx, []string{receipt.CustomerEmail}, subject, linkBody(receipt.ReceiptNumber, grant)); err != nil {
		return documentsdomain.DownloadGrant{}, err
	}
	s.metrics.RecordEmailSent(ctx, "receipt")

	return grant, nil
}

// ensureInvoicePDF renders and stores the artifact on first demand.
// A render failure is reported as not-ready; the document itself stays
// valid and a later request retries the render.
func (s *Service) ensureInvoicePDF(ctx context.Context, invoice *invoicedomain.Invoice) error {
	if invoice.PDFGenerated && fileExists(invoice.PDFPath) {
		return nil
	}

	reader, err := s.pdf.GenerateInvoice(ctx, s.invoiceRenderData(*invoice))
	if err != nil {
		s.metrics.RecordPDFRender(ctx, "invoice", "error")
		s.log.Error("invoice pdf render failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
		return documentsdomain.ErrResourceNotReady
	}

	path := filepath.Join(s.cfg.StorageDir, "invoices", invoice.ID.String()+".pdf")
	if err := writeArtifact(path, reader); err != nil {
		s.metrics.RecordPDFRender(ctx, "invoice", "error")
		return err
	}
	s.metrics.RecordPDFRender(ctx, "invoice", "ok")

	invoice.PDFGenerated = true
	invoice.PDFPath = path
	return s.db.WithContext(ctx).Model(&invoicedomain.Invoice{}).
		Where("id = ?", invoice.ID).
		Updates(map[string]any{
			"pdf_generated": true,
			"pdf_path":      path,
			"updated_at":    s.clock.Now(),
		}).Error
}

func (s *Service) ensureReceiptPDF(ctx context.Context, receipt *receiptdomain.Receipt) error {
	if receipt.PDFGenerated && fileExists(receipt.PDFPath) {
		return nil
	}

	reader, err := s.pdf.GenerateReceipt(ctx, s.receiptRenderData(*receipt))
	if err != nil {
		s.metrics.RecordPDFRender(ctx, "receipt", "error")
		s.log.Error("receipt pdf render failed",
			zap.String("receipt_id", receipt.ID.String()),
			zap.Error(err),
		)
		return documentsdomain.ErrResourceNotReady
	}

	path := filepath.Join(s.cfg.StorageDir, "receipts", receipt.ID.String()+".pdf")
	if err := writeArtifact(path, reader); err != nil {
		s.metrics.RecordPDFRender(ctx, "receipt", "error")
		return err
	}
	s.metrics.RecordPDFRender(ctx, "receipt", "ok")

	receipt.PDFGenerated = true
	receipt.PDFPath = path
	return s.db.WithContext(ctx).Model(&receiptdomain.Receipt{}).
		Where("id = ?", receipt.ID).
		Updates(map[string]any{
			"pdf_generated": true,
			"pdf_path":      path,
			"updated_at":    s.clock.Now(),
		}).Error
}

func (s *Service) invoiceDownload(ctx context.Context, invoiceID snowflake.ID) (documentsdomain.Download, error) {
	var invoice invoicedomain.Invoice
	err := s.db.WithContext(ctx).Where("id = ?", invoiceID).First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return documentsdomain.Download{}, tokendomain.ErrTokenInvalid
	}
	if err != nil {
		return documentsdomain.Download{}, err
	}
	if !fileExists(invoice.PDFPath) {
		return documentsdomain.Download{}, documentsdomain.ErrResourceNotReady
	}

	number := invoice.ID.String()
	if invoice.InvoiceNumber != nil {
		number = *invoice.InvoiceNumber
	}
	return documentsdomain.Download{
		Path:        invoice.PDFPath,
		Filename:    "invoice-" + number + ".pdf",
		ContentType: "application/pdf",
	}, nil
}

func (s *Service) receiptDownload(ctx context.Context, receiptID snowflake.ID) (documentsdomain.Download, error) {
	var receipt receiptdomain.Receipt
	err := s.db.WithContext(ctx).Where("id = ?", receiptID).First(&receipt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return documentsdomain.Download{}, tokendomain.ErrTokenInvalid
	}
	if err != nil {
		return documentsdomain.Download{}, err
	}
	if !fileExists(receipt.PDFPath) {
		return documentsdomain.Download{}, documentsdomain.ErrResourceNotReady
	}

	return documentsdomain.Download{
		Path:        receipt.PDFPath,
		Filename:    "receipt-" + receipt.ReceiptNumber + ".pdf",
		ContentType: "application/pdf",
	}, nil
}

func (s *Service) grant(issued tokendomain.Issued) documentsdomain.DownloadGrant {
	return documentsdomain.DownloadGrant{
		Secret:       issued.Secret,
		URL:          s.cfg.PublicURL + "/d/" + issued.Secret,
		ExpiresAt:    issued.ExpiresAt,
		MaxDownloads: issued.Token.MaxRedemptions,
	}
}

func (s *Service) invoiceRenderData(invoice invoicedomain.Invoice) pdf.InvoiceData {
	cfg := s.billing.Get()
	symbol := invoice.CurrencySymbol
	if symbol == "" {
		symbol = cfg.CurrencySymbol
	}
	amount := func(d decimal.Decimal) string {
		return symbol + d.StringFixed(cfg.RoundingPrecision)
	}

	number := ""
	if invoice.InvoiceNumber != nil {
		number = *invoice.InvoiceNumber
	}
	dueDate := ""
	if invoice.DueAt != nil {
		dueDate = invoice.DueAt.Format("02 Jan 2006")
	}
	issueDate := invoice.CreatedAt.Format("02 Jan 2006")
	if invoice.FinalizedAt != nil {
		issueDate = invoice.FinalizedAt.Format("02 Jan 2006")
	}

	items := make([]pdf.InvoiceItem, 0, len(invoice.Items))
	for _, item := range invoice.Items {
		items = append(items, pdf.InvoiceItem{
			Description: item.Description,
			HSNCode:     item.HSNCode,
			Quantity:    item.Quantity.String(),
			Unit:        item.Unit,
			Rate:        amount(item.Rate),
			Discount:    amount(item.Discount),
			TaxRate:     item.TaxRate.String() + "%",
			Amount:      amount(item.Total),
		})
	}

	data := pdf.InvoiceData{
		InvoiceNumber: number,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		Status:        string(invoice.Status),

		SellerState: invoice.SellerState,

		ClientName:    invoice.ClientName,
		ClientAddress: invoice.ClientAddress,
		ClientEmail:   invoice.ClientEmail,
		ClientTaxID:   invoice.ClientTaxID,
		ClientState:   invoice.ClientState,

		Items: items,

		Subtotal:      amount(invoice.Subtotal),
		TaxableAmount: amount(invoice.TaxableAmount),
		GrandTotal:    amount(invoice.GrandTotal),

		Notes: invoice.Notes,
	}
	if invoice.DiscountAmount.IsPositive() || invoice.DiscountPercent.IsPositive() {
		data.Discount = amount(invoice.Subtotal.Sub(invoice.TaxableAmount))
	}
	if !invoice.TaxA.IsZero() || !invoice.TaxB.IsZero() {
		data.TaxA = amount(invoice.TaxA)
		data.TaxB = amount(invoice.TaxB)
	}
	if !invoice.TaxCross.IsZero() {
		data.TaxCross = amount(invoice.TaxCross)
	}
	if !invoice.RoundOff.IsZero() {
		data.RoundOff = amount(invoice.RoundOff)
	}
	return data
}

func (s *Service) receiptRenderData(receipt receiptdomain.Receipt) pdf.ReceiptData {
	cfg := s.billing.Get()
	symbol := receipt.CurrencySymbol
	if symbol == "" {
		symbol = cfg.CurrencySymbol
	}
	amount := func(d decimal.Decimal) string {
		return symbol + d.StringFixed(cfg.RoundingPrecision)
	}

	return pdf.ReceiptData{
		ReceiptNumber: receipt.ReceiptNumber,
		IssueDate:     receipt.IssuedAt.Format("02 Jan 2006"),
		Type:          string(receipt.Type),

		CustomerName:  receipt.CustomerName,
		CustomerEmail: receipt.CustomerEmail,
		Description:   receipt.Description,

		PaymentMethod:    receipt.PaymentMethod,
		PaymentReference: receipt.PaymentReference,

		Amount:  amount(receipt.Amount),
		TaxRate: receipt.TaxRate.String() + "%",
		Tax:     amount(receipt.Tax),
		Total:   amount(receipt.Total),
	}
}

func invoiceServable(status documentdomain.Status) bool {
	switch status {
	case documentdomain.StatusFinalized, documentdomain.StatusSent, documentdomain.StatusPaid:
		return true
	default:
		return false
	}
}

func linkBody(number string, grant documentsdomain.DownloadGrant) string {
	expiry := grant.ExpiresAt.UTC().Format(time.RFC1123)
	return fmt.Sprintf(
		`<p>Your document %s is ready.</p>
<p><a href="%s">Download PDF</a></p>
<p>The link expires %s and allows up to %d downloads.</p>`,
		number, grant.URL, expiry, grant.MaxDownloads,
	)
}

func writeArtifact(path string, reader io.Reader) error {
	if reader == nil {
		return os.ErrInvalid
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
