package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/ledgerline/billing/internal/audit/domain"
	"github.com/ledgerline/billing/internal/clock"
	"github.com/ledgerline/billing/internal/config"
	documentdomain "github.com/ledgerline/billing/internal/document/domain"
	invoicedomain "github.com/ledgerline/billing/internal/invoice/domain"
	"github.com/ledgerline/billing/internal/money"
	"github.com/ledgerline/billing/internal/observability/metrics"
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

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,

		clock:     p.Clock,
		billing:   p.Billing,
		allocator: p.Allocator,
		auditSvc:  p.AuditSvc,
		metrics:   p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if strings.TrimSpace(req.ClientName) == "" {
		return invoicedomain.Invoice{}, invoicedomain.ErrMissingClientName
	}

	cfg := s.billing.Get()
	now := s.clock.Now()

	invoice := invoicedomain.Invoice{
		ID:     s.genID.Generate(),
		UserID: userID,
		Status: documentdomain.StatusDraft,

		ClientName:    strings.TrimSpace(req.ClientName),
		ClientEmail:   strings.TrimSpace(req.ClientEmail),
		ClientAddress: req.ClientAddress,
		ClientTaxID:   strings.TrimSpace(req.ClientTaxID),
		ClientState:   strings.TrimSpace(req.ClientState),
		SellerState:   strings.TrimSpace(req.SellerState),

		Currency:       cfg.Currency,
		CurrencySymbol: cfg.CurrencySymbol,
		Notes:          req.Notes,
		DueAt:          req.DueAt,

		DiscountPercent: req.DiscountPercent,
		DiscountAmount:  req.DiscountAmount,

		CreatedAt: now,
		UpdatedAt: now,
	}

	items, err := s.buildItems(&invoice, req.Items, now)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if err := s.recompute(&invoice, items, cfg.RoundingPrecision); err != nil {
		return invoicedomain.Invoice{}, err
	}
	invoice.Items = items

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&invoice).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.emitAudit(ctx, "invoice.created", &invoice, nil)
	return invoice, nil
}

func (s *Service) Update(ctx context.Context, id string, req invoicedomain.UpdateInvoiceRequest) (invoicedomain.Invoice, error) {
	return s.mutateDraft(ctx, id, "invoice.updated", func(tx *gorm.DB, invoice *invoicedomain.Invoice, items []invoicedomain.InvoiceItem) ([]invoicedomain.InvoiceItem, error) {
		applyHeaderUpdate(invoice, req)

		if req.Items == nil {
			return items, nil
		}

		// A non-nil item set replaces the whole line list.
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&invoicedomain.InvoiceItem{}).Error; err != nil {
			return nil, err
		}
		replaced, err := s.buildItems(invoice, req.Items, s.clock.Now())
		if err != nil {
			return nil, err
		}
		if len(replaced) > 0 {
			if err := tx.Create(&replaced).Error; err != nil {
				return nil, err
			}
		}
		return replaced, nil
	})
}

func (s *Service) AddItem(ctx context.Context, id string, item invoicedomain.LineItemInput) (invoicedomain.Invoice, error) {
	return s.mutateDraft(ctx, id, "invoice.item_added", func(tx *gorm.DB, invoice *invoicedomain.Invoice, items []invoicedomain.InvoiceItem) ([]invoicedomain.InvoiceItem, error) {
		built, err := s.buildItem(invoice, item, len(items), s.clock.Now())
		if err != nil {
			return nil, err
		}
		if err := tx.Create(&built).Error; err != nil {
			return nil, err
		}
		return append(items, built), nil
	})
}

func (s *Service) RemoveItem(ctx context.Context, id, itemID string) (invoicedomain.Invoice, error) {
	target, err := snowflake.ParseString(strings.TrimSpace(itemID))
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrItemNotFound
	}

	return s.mutateDraft(ctx, id, "invoice.item_removed", func(tx *gorm.DB, invoice *invoicedomain.Invoice, items []invoicedomain.InvoiceItem) ([]invoicedomain.InvoiceItem, error) {
		kept := items[:0]
		found := false
		for _, it := range items {
			if it.ID == target {
				found = true
				continue
			}
			kept = append(kept, it)
		}
		if !found {
			return nil, invoicedomain.ErrItemNotFound
		}

		if err := tx.Where("id = ? AND invoice_id = ?", target, invoice.ID).Delete(&invoicedomain.InvoiceItem{}).Error; err != nil {
			return nil, err
		}
		for i := range kept {
			if kept[i].Position != i {
				kept[i].Position = i
				if err := tx.Model(&invoicedomain.InvoiceItem{}).
					Where("id = ?", kept[i].ID).
					Update("position", i).Error; err != nil {
					return nil, err
				}
			}
		}
		return kept, nil
	})
}

func (s *Service) Get(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	var invoice invoicedomain.Invoice
	err = s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", invoiceID, userID).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	items, err := s.loadItems(ctx, s.db, invoice.ID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	invoice.Items = items
	return invoice, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	size := req.PageSize
	if size <= 0 {
		size = 10
	}

	query := s.db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("user_id = ?", userID)
	if req.Status != nil {
		query = query.Where("status = ?", *req.Status)
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		// Snowflake IDs carry the creation order, so the cursor compares
		// on the primary key alone.
		after, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, pagination.ErrInvalidPageToken
		}
		query = query.Where("id < ?", after)
	}

	var invoices []invoicedomain.Invoice
	if err := query.
		Order("id DESC").
		Limit(size + 1).
		Find(&invoices).Error; err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	resp := invoicedomain.ListInvoiceResponse{Invoices: invoices}
	if len(invoices) > size {
		resp.Invoices = invoices[:size]
		last := resp.Invoices[size-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        last.ID.String(),
			CreatedAt: last.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		resp.PageInfo = pagination.PageInfo{NextPageToken: token, HasMore: true}
	}
	return resp, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return err
	}
	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return err
	}

	var deleted *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadOwnedForUpdate(ctx, tx, userID, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != documentdomain.StatusDraft {
			return invoicedomain.ErrInvoiceNotDraft
		}

		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&invoicedomain.InvoiceItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", invoice.ID).Delete(&invoicedomain.Invoice{}).Error; err != nil {
			return err
		}
		deleted = invoice
		return nil
	})
	if err != nil {
		return err
	}

	s.emitAudit(ctx, "invoice.deleted", deleted, nil)
	return nil
}

// Finalize recomputes totals from the persisted lines, allocates the
// owner-scoped invoice number and stamps it in the same transaction as
// the status flip, so a rollback can never leave a numbered draft.
func (s *Service) Finalize(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	cfg := s.billing.Get()
	var finalized invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadOwnedForUpdate(ctx, tx, userID, invoiceID)
		if err != nil {
			return err
		}
		if _, err := documentdomain.Transition(invoice.Status, documentdomain.StatusFinalized); err != nil {
			return err
		}

		items, err := s.loadItems(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return invoicedomain.ErrNoLineItems
		}
		if err := s.recompute(invoice, items, cfg.RoundingPrecision); err != nil {
			return err
		}

		now := s.clock.Now()
		number, _, err := s.allocator.NextInvoiceNumber(ctx, tx, userID, now)
		if err != nil {
			return err
		}

		invoice.InvoiceNumber = &number
		invoice.Status = documentdomain.StatusFinalized
		invoice.FinalizedAt = &now
		invoice.UpdatedAt = now
		if err := tx.Exec(
			`UPDATE invoices
			 SET invoice_number = ?, status = ?, finalized_at = ?, updated_at = ?,
			     subtotal = ?, taxable_amount = ?, tax_a = ?, tax_b = ?, tax_cross = ?,
			     total_tax = ?, round_off = ?, grand_total = ?
			 WHERE id = ?`,
			number,
			documentdomain.StatusFinalized,
			now,
			now,
			invoice.Subtotal,
			invoice.TaxableAmount,
			invoice.TaxA,
			invoice.TaxB,
			invoice.TaxCross,
			invoice.TotalTax,
			invoice.RoundOff,
			invoice.GrandTotal,
			invoice.ID,
		).Error; err != nil {
			return err
		}

		invoice.Items = items
		finalized = *invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.metrics.RecordDocumentFinalized(ctx, "invoice")
	s.emitAudit(ctx, "invoice.finalized", &finalized, map[string]any{
		"previous_status": string(documentdomain.StatusDraft),
	})
	return finalized, nil
}

func (s *Service) MarkSent(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	return s.transition(ctx, id, documentdomain.StatusSent, "invoice.sent")
}

func (s *Service) MarkPaid(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	return s.transition(ctx, id, documentdomain.StatusPaid, "invoice.paid")
}

func (s *Service) Cancel(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	return s.transition(ctx, id, documentdomain.StatusCancelled, "invoice.cancelled")
}

func (s *Service) transition(ctx context.Context, id string, to documentdomain.Status, action string) (invoicedomain.Invoice, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	var moved invoicedomain.Invoice
	var previous documentdomain.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadOwnedForUpdate(ctx, tx, userID, invoiceID)
		if err != nil {
			return err
		}
		previous = invoice.Status
		next, err := documentdomain.Transition(invoice.Status, to)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		invoice.Status = next
		invoice.UpdatedAt = now
		updates := map[string]any{"status": next, "updated_at": now}
		switch next {
		case documentdomain.StatusSent:
			invoice.SentAt = &now
			updates["sent_at"] = now
		case documentdomain.StatusPaid:
			invoice.PaidAt = &now
			updates["paid_at"] = now
		case documentdomain.StatusCancelled:
			invoice.CancelledAt = &now
			updates["cancelled_at"] = now
		}
		if err := tx.Model(&invoicedomain.Invoice{}).
			Where("id = ?", invoice.ID).
			Updates(updates).Error; err != nil {
			return err
		}
		moved = *invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.emitAudit(ctx, action, &moved, map[string]any{
		"previous_status": string(previous),
	})
	return moved, nil
}

// mutateDraft runs fn against a draft invoice and its loaded items,
// then recomputes and persists the document totals. Any state past
// Draft rejects the mutation before fn runs.
func (s *Service) mutateDraft(ctx context.Context, id, action string, fn func(tx *gorm.DB, invoice *invoicedomain.Invoice, items []invoicedomain.InvoiceItem) ([]invoicedomain.InvoiceItem, error)) (invoicedomain.Invoice, error) {
	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	cfg := s.billing.Get()
	var mutated invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadOwnedForUpdate(ctx, tx, userID, invoiceID)
		if err != nil {
			return err
		}
		if !invoice.Status.Editable() {
			return invoicedomain.ErrInvoiceNotEditable
		}

		items, err := s.loadItems(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		items, err = fn(tx, invoice, items)
		if err != nil {
			return err
		}
		if err := s.recompute(invoice, items, cfg.RoundingPrecision); err != nil {
			return err
		}

		now := s.clock.Now()
		invoice.UpdatedAt = now
		if err := tx.Model(&invoicedomain.Invoice{}).
			Where("id = ?", invoice.ID).
			Updates(map[string]any{
				"client_name":      invoice.ClientName,
				"client_email":     invoice.ClientEmail,
				"client_address":   invoice.ClientAddress,
				"client_tax_id":    invoice.ClientTaxID,
				"client_state":     invoice.ClientState,
				"seller_state":     invoice.SellerState,
				"notes":            invoice.Notes,
				"due_at":           invoice.DueAt,
				"discount_percent": invoice.DiscountPercent,
				"discount_amount":  invoice.DiscountAmount,
				"subtotal":         invoice.Subtotal,
				"taxable_amount":   invoice.TaxableAmount,
				"tax_a":            invoice.TaxA,
				"tax_b":            invoice.TaxB,
				"tax_cross":        invoice.TaxCross,
				"total_tax":        invoice.TotalTax,
				"round_off":        invoice.RoundOff,
				"grand_total":      invoice.GrandTotal,
				"updated_at":       now,
			}).Error; err != nil {
			return err
		}

		invoice.Items = items
		mutated = *invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.emitAudit(ctx, action, &mutated, nil)
	return mutated, nil
}

func (s *Service) loadOwnedForUpdate(ctx context.Context, tx *gorm.DB, userID, invoiceID snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.ForUpdate(tx.WithContext(ctx)).
		Where("id = ? AND user_id = ?", invoiceID, userID).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Service) loadItems(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) ([]invoicedomain.InvoiceItem, error) {
	var items []invoicedomain.InvoiceItem
	err := tx.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("position ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) buildItems(invoice *invoicedomain.Invoice, inputs []invoicedomain.LineItemInput, now time.Time) ([]invoicedomain.InvoiceItem, error) {
	items := make([]invoicedomain.InvoiceItem, 0, len(inputs))
	for i, in := range inputs {
		item, err := s.buildItem(invoice, in, i, now)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) buildItem(invoice *invoicedomain.Invoice, in invoicedomain.LineItemInput, position int, now time.Time) (invoicedomain.InvoiceItem, error) {
	cfg := s.billing.Get()
	taxRate := decimal.NewFromFloat(cfg.DefaultTaxRate)
	if in.TaxRate != nil {
		taxRate = *in.TaxRate
	}
	jurisdiction := deriveJurisdiction(invoice.SellerState, invoice.ClientState)

	totals, err := money.ComputeLine(money.LineInput{
		Quantity:        in.Quantity,
		Rate:            in.Rate,
		DiscountPercent: in.DiscountPercent,
		DiscountAmount:  in.DiscountAmount,
		TaxRate:         taxRate,
		Jurisdiction:    jurisdiction,
	})
	if err != nil {
		return invoicedomain.InvoiceItem{}, err
	}

	return invoicedomain.InvoiceItem{
		ID:        s.genID.Generate(),
		InvoiceID: invoice.ID,
		Position:  position,

		Description: strings.TrimSpace(in.Description),
		HSNCode:     strings.TrimSpace(in.HSNCode),
		Unit:        strings.TrimSpace(in.Unit),

		Quantity:        in.Quantity,
		Rate:            in.Rate,
		DiscountPercent: in.DiscountPercent,
		DiscountAmount:  in.DiscountAmount,
		TaxRate:         taxRate,
		Jurisdiction:    string(jurisdiction),

		LineTotal:     totals.LineTotal,
		Discount:      totals.Discount,
		TaxableAmount: totals.TaxableAmount,
		TaxA:          totals.TaxA,
		TaxB:          totals.TaxB,
		TaxCross:      totals.TaxCross,
		TotalTax:      totals.TotalTax,
		Total:         totals.Total,

		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// recompute re-derives the document totals from the item rows. The
// persisted line breakdowns are authoritative inputs; the engine is
// re-run so header-level discounts always apply to the current lines.
func (s *Service) recompute(invoice *invoicedomain.Invoice, items []invoicedomain.InvoiceItem, precision int32) error {
	lines := make([]money.LineInput, 0, len(items))
	for _, item := range items {
		lines = append(lines, money.LineInput{
			Quantity:        item.Quantity,
			Rate:            item.Rate,
			DiscountPercent: item.DiscountPercent,
			DiscountAmount:  item.DiscountAmount,
			TaxRate:         item.TaxRate,
			Jurisdiction:    money.Jurisdiction(item.Jurisdiction),
		})
	}

	totals, err := money.ComputeDocument(money.DocumentInput{
		Lines:           lines,
		DiscountPercent: invoice.DiscountPercent,
		DiscountAmount:  invoice.DiscountAmount,
		Precision:       precision,
	})
	if err != nil {
		return err
	}

	invoice.Subtotal = totals.Subtotal
	invoice.TaxableAmount = totals.TaxableAmount
	invoice.TaxA = totals.TaxA
	invoice.TaxB = totals.TaxB
	invoice.TaxCross = totals.TaxCross
	invoice.TotalTax = totals.TotalTax
	invoice.RoundOff = totals.RoundOff
	invoice.GrandTotal = totals.GrandTotal
	return nil
}

func (s *Service) emitAudit(ctx context.Context, action string, invoice *invoicedomain.Invoice, extra map[string]any) {
	if s.auditSvc == nil || invoice == nil {
		return
	}
	metadata := map[string]any{
		"status":      string(invoice.Status),
		"currency":    invoice.Currency,
		"grand_total": invoice.GrandTotal.String(),
	}
	if invoice.InvoiceNumber != nil {
		metadata["invoice_number"] = *invoice.InvoiceNumber
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	actorID := invoice.UserID
	targetID := invoice.ID.String()
	s.auditSvc.Record(ctx, &actorID, action, "invoice", &targetID, metadata)
}

func (s *Service) userIDFromContext(ctx context.Context) (snowflake.ID, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return 0, invoicedomain.ErrInvalidUser
	}
	return userID, nil
}

func applyHeaderUpdate(invoice *invoicedomain.Invoice, req invoicedomain.UpdateInvoiceRequest) {
	if req.ClientName != nil {
		invoice.ClientName = strings.TrimSpace(*req.ClientName)
	}
	if req.ClientEmail != nil {
		invoice.ClientEmail = strings.TrimSpace(*req.ClientEmail)
	}
	if req.ClientAddress != nil {
		invoice.ClientAddress = *req.ClientAddress
	}
	if req.ClientTaxID != nil {
		invoice.ClientTaxID = strings.TrimSpace(*req.ClientTaxID)
	}
	if req.ClientState != nil {
		invoice.ClientState = strings.TrimSpace(*req.ClientState)
	}
	if req.SellerState != nil {
		invoice.SellerState = strings.TrimSpace(*req.SellerState)
	}
	if req.Notes != nil {
		invoice.Notes = *req.Notes
	}
	if req.DueAt != nil {
		invoice.DueAt = req.DueAt
	}
	if req.DiscountPercent != nil {
		invoice.DiscountPercent = *req.DiscountPercent
	}
	if req.DiscountAmount != nil {
		invoice.DiscountAmount = *req.DiscountAmount
	}
}

// deriveJurisdiction maps the seller and client state facts onto the
// engine's jurisdiction. Missing facts on either side stay unknown and
// the engine treats them as cross.
func deriveJurisdiction(sellerState, clientState string) money.Jurisdiction {
	seller := strings.ToUpper(strings.TrimSpace(sellerState))
	client := strings.ToUpper(strings.TrimSpace(clientState))
	if seller == "" || client == "" {
		return money.JurisdictionUnknown
	}
	if seller == client {
		return money.JurisdictionSame
	}
	return money.JurisdictionCross
}

func parseInvoiceID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, invoicedomain.ErrInvalidInvoiceID
	}
	return id, nil
}
