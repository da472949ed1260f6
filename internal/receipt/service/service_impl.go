package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/ledgerline/billing/internal/audit/domain"
	"github.com/ledgerline/billing/internal/clock"
	"github.com/ledgerline/billing/internal/config"
	documentdomain "github.com/ledgerline/billing/internal/document/domain"
	invoicedomain "github.com/ledgerline/billing/internal/invoice/domain"
	"github.com/ledgerline/billing/internal/money"
	"github.com/ledgerline/billing/internal/observability/metrics"
	receiptdomain "github.com/ledgerline/billing/internal/receipt/domain"
	sequencedomain "github.com/ledgerline/billing/internal/sequence/domain"
	"github.com/ledgerline/billing/internal/usercontext"
	"github.com/ledgerline/billing/pkg/db"
	"github.com/ledgerline/billing/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Billing   *config.BillingConfigHolder
	Allocator sequencedomain.Allocator
	AuditSvc  auditdomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID     *snowflake.Node
	clock     clock.Clock
	billing   *config.BillingConfigHolder
	allocator sequencedomain.Allocator
	auditSvc  auditdomain.Service
	metrics   *metrics.Metrics
}

func NewService(p ServiceParam) receiptdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("receipt.service"),
		genID: p.GenID,

		clock:     p.Clock,
		billing:   p.Billing,
		allocator: p.Allocator,
		auditSvc:  p.AuditSvc,
		metrics:   p.Metrics,
	}
}

// CreateFromPayment back-splits the tax-inclusive total and stamps the
// period-scoped number inside the creation transaction. The document
// is born Finalized; there is no draft stage for receipts.
func (s *Service) CreateFromPayment(ctx context.Context, req receiptdomain.CreateFromPaymentRequest) (receiptdomain.Receipt, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return receiptdomain.Receipt{}, err
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return receiptdomain.Receipt{}, receiptdomain.ErrMissingCustomer
	}
	if !req.Total.IsPositive() {
		return receiptdomain.Receipt{}, receiptdomain.ErrInvalidTotal
	}

	receiptType := req.Type
	if receiptType == "" {
		receiptType = receiptdomain.TypeSubscriptionPayment
	}
	if !receiptType.Valid() {
		return receiptdomain.Receipt{}, receiptdomain.ErrInvalidReceiptType
	}

	cfg := s.billing.Get()
	taxRate := decimal.NewFromFloat(cfg.DefaultTaxRate)
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}
	amount, tax, err := money.SplitInclusive(req.Total, taxRate, cfg.RoundingPrecision)
	if err != nil {
		return receiptdomain.Receipt{}, err
	}

	now := s.clock.Now()
	receipt := receiptdomain.Receipt{
		ID:     s.genID.Generate(),
		UserID: userID,
		Type:   receiptType,
		Status: documentdomain.StatusFinalized,

		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		Description:   req.Description,

		PaymentMethod:    strings.TrimSpace(req.PaymentMethod),
		PaymentReference: strings.TrimSpace(req.PaymentReference),

		Currency:       cfg.Currency,
		CurrencySymbol: cfg.CurrencySymbol,

		TaxRate: taxRate,
		Amount:  amount,
		Tax:     tax,
		Total:   req.Total,

		IssuedAt:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, _, err := s.allocator.NextReceiptNumber(ctx, tx, now)
		if err != nil {
			return err
		}
		receipt.ReceiptNumber = number
		return tx.Create(&receipt).Error
	})
	if err != nil {
		return receiptdomain.Receipt{}, err
	}

	s.metrics.RecordDocumentFinalized(ctx, "receipt")
	s.emitAudit(ctx, "receipt.created", &receipt, nil)
	return receipt, nil
}

// CreateFromInvoicePayment copies the invoice totals forward without
// recomputation and flips the invoice to Paid in the same transaction,
// so a receipt can never exist for an unpaid invoice.
func (s *Service) CreateFromInvoicePayment(ctx context.Context, req receiptdomain.CreateFromInvoicePaymentRequest) (receiptdomain.Receipt, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return receiptdomain.Receipt{}, err
	}
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(req.InvoiceID))
	if err != nil {
		return receiptdomain.Receipt{}, invoicedomain.ErrInvalidInvoiceID
	}

	cfg := s.billing.Get()
	var receipt receiptdomain.Receipt
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoice invoicedomain.Invoice
		err := db.ForUpdate(tx.WithContext(ctx)).
			Where("id = ? AND user_id = ?", invoiceID, userID).
			First(&invoice).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invoicedomain.ErrInvoiceNotFound
		}
		if err != nil {
			return err
		}

		if _, err := documentdomain.Transition(invoice.Status, documentdomain.StatusPaid); err != nil {
			return err
		}

		now := s.clock.Now()
		number, _, err := s.allocator.NextReceiptNumber(ctx, tx, now)
		if err != nil {
			return err
		}

		invoiceNumber := ""
		if invoice.InvoiceNumber != nil {
			invoiceNumber = *invoice.InvoiceNumber
		}
		receipt = receiptdomain.Receipt{
			ID:            s.genID.Generate(),
			UserID:        userID,
			ReceiptNumber: number,
			Type:          receiptdomain.TypeInvoicePayment,
			Status:        documentdomain.StatusFinalized,

			InvoiceID: &invoice.ID,

			CustomerName:  invoice.ClientName,
			CustomerEmail: invoice.ClientEmail,
			Description:   "Payment for invoice " + invoiceNumber,

			PaymentMethod:    strings.TrimSpace(req.PaymentMethod),
			PaymentReference: strings.TrimSpace(req.PaymentReference),

			Currency:       invoice.Currency,
			CurrencySymbol: invoice.CurrencySymbol,

			TaxRate: averageRate(invoice.TotalTax, invoice.TaxableAmount, cfg.RoundingPrecision),
			Amount:  invoice.GrandTotal.Sub(invoice.TotalTax),
			Tax:     invoice.TotalTax,
			Total:   invoice.GrandTotal,

			IssuedAt:  now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&receipt).Error; err != nil {
			return err
		}

		return tx.Model(&invoicedomain.Invoice{}).
			Where("id = ?", invoice.ID).
			Updates(map[string]any{
				"status":     documentdomain.StatusPaid,
				"paid_at":    now,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return receiptdomain.Receipt{}, err
	}

	s.metrics.RecordDocumentFinalized(ctx, "receipt")
	s.emitAudit(ctx, "receipt.created", &receipt, map[string]any{
		"invoice_id": invoiceID.String(),
	})
	return receipt, nil
}

func (s *Service) Get(ctx context.Context, id string) (receiptdomain.Receipt, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return receiptdomain.Receipt{}, err
	}
	receiptID, err := parseReceiptID(id)
	if err != nil {
		return receiptdomain.Receipt{}, err
	}

	var receipt receiptdomain.Receipt
	err = s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", receiptID, userID).
		First(&receipt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return receiptdomain.Receipt{}, receiptdomain.ErrReceiptNotFound
	}
	if err != nil {
		return receiptdomain.Receipt{}, err
	}
	return receipt, nil
}

func (s *Service) List(ctx context.Context, req receiptdomain.ListReceiptRequest) (receiptdomain.ListReceiptResponse, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return receiptdomain.ListReceiptResponse{}, err
	}

	size := req.PageSize
	if size <= 0 {
		size = 10
	}

	query := s.db.WithContext(ctx).
		Model(&receiptdomain.Receipt{}).
		Where("user_id = ?", userID)
	if req.Status != nil {
		query = query.Where("status = ?", *req.Status)
	}
	if req.Type != nil {
		query = query.Where("type = ?", *req.Type)
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return receiptdomain.ListReceiptResponse{}, err
		}
		after, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return receiptdomain.ListReceiptResponse{}, pagination.ErrInvalidPageToken
		}
		query = query.Where("id < ?", after)
	}

	var receipts []receiptdomain.Receipt
	if err := query.
		Order("id DESC").
		Limit(size + 1).
		Find(&receipts).Error; err != nil {
		return receiptdomain.ListReceiptResponse{}, err
	}

	resp := receiptdomain.ListReceiptResponse{Receipts: receipts}
	if len(receipts) > size {
		resp.Receipts = receipts[:size]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID: resp.Receipts[size-1].ID.String(),
		})
		if err != nil {
			return receiptdomain.ListReceiptResponse{}, err
		}
		resp.PageInfo = pagination.PageInfo{NextPageToken: token, HasMore: true}
	}
	return resp, nil
}

func (s *Service) MarkSent(ctx context.Context, id string) (receiptdomain.Receipt, error) {
	return s.transition(ctx, id, documentdomain.StatusSent, "receipt.sent")
}

func (s *Service) MarkPaid(ctx context.Context, id string) (receiptdomain.Receipt, error) {
	return s.transition(ctx, id, documentdomain.StatusPaid, "receipt.paid")
}

func (s *Service) Cancel(ctx context.Context, id string) (receiptdomain.Receipt, error) {
	return s.transition(ctx, id, documentdomain.StatusCancelled, "receipt.cancelled")
}

func (s *Service) transition(ctx context.Context, id string, to documentdomain.Status, action string) (receiptdomain.Receipt, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return receiptdomain.Receipt{}, err
	}
	receiptID, err := parseReceiptID(id)
	if err != nil {
		return receiptdomain.Receipt{}, err
	}

	var moved receiptdomain.Receipt
	var previous documentdomain.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var receipt receiptdomain.Receipt
		err := db.ForUpdate(tx.WithContext(ctx)).
			Where("id = ? AND user_id = ?", receiptID, userID).
			First(&receipt).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return receiptdomain.ErrReceiptNotFound
		}
		if err != nil {
			return err
		}

		previous = receipt.Status
		next, err := documentdomain.Transition(receipt.Status, to)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		receipt.Status = next
		receipt.UpdatedAt = now
		updates := map[string]any{"status": next, "updated_at": now}
		switch next {
		case documentdomain.StatusSent:
			receipt.SentAt = &now
			updates["sent_at"] = now
		case documentdomain.StatusPaid:
			receipt.PaidAt = &now
			updates["paid_at"] = now
		case documentdomain.StatusCancelled:
			receipt.CancelledAt = &now
			updates["cancelled_at"] = now
		}
		if err := tx.Model(&receiptdomain.Receipt{}).
			Where("id = ?", receipt.ID).
			Updates(updates).Error; err != nil {
			return err
		}
		moved = receipt
		return nil
	})
	if err != nil {
		return receiptdomain.Receipt{}, err
	}

	s.emitAudit(ctx, action, &moved, map[string]any{
		"previous_status": string(previous),
	})
	return moved, nil
}

func (s *Service) emitAudit(ctx context.Context, action string, receipt *receiptdomain.Receipt, extra map[string]any) {
	if s.auditSvc == nil || receipt == nil {
		return
	}
	metadata := map[string]any{
		"receipt_number": receipt.ReceiptNumber,
		"type":           string(receipt.Type),
		"status":         string(receipt.Status),
		"currency":       receipt.Currency,
		"total":          receipt.Total.String(),
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	actorID := receipt.UserID
	targetID := receipt.ID.String()
	s.auditSvc.Record(ctx, &actorID, action, "receipt", &targetID, metadata)
}

func (s *Service) userIDFromContext(ctx context.Context) (snowflake.ID, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return 0, invoicedomain.ErrInvalidUser
	}
	return userID, nil
}

// averageRate derives the effective tax rate of an invoice for display
// on the receipt. Mixed-rate invoices have no single source rate, so
// the blended value is the only honest figure.
func averageRate(totalTax, taxable decimal.Decimal, precision int32) decimal.Decimal {
	if taxable.IsZero() {
		return decimal.Zero
	}
	return money.RoundHalfUp(totalTax.Mul(decimal.NewFromInt(100)).Div(taxable), precision)
}

func parseReceiptID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, receiptdomain.ErrInvalidReceiptID
	}
	return id, nil
}
