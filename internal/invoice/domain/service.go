package domain

import (
	"context"
	"errors"
	"time"

	documentdomain "github.com/ledgerline/billing/internal/document/domain"
	"github.com/ledgerline/billing/pkg/db/pagination"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInvoiceID   = errors.New("invalid_invoice_id")
	ErrInvalidUser        = errors.New("invalid_user")
	ErrInvoiceNotFound    = errors.New("invoice_not_found")
	ErrInvoiceNotEditable = errors.New("invoice_not_editable")
	ErrInvoiceNotDraft    = errors.New("invoice_not_draft")
	ErrNoLineItems        = errors.New("invoice_has_no_line_items")
	ErrItemNotFound       = errors.New("invoice_item_not_found")
	ErrMissingClientName  = errors.New("missing_client_name")
)

// LineItemInput is the caller-provided shape of one line. A nil TaxRate
// falls back to the configured default rate.
type LineItemInput struct {
	Description     string           `json:"description" binding:"required"`
	HSNCode         string           `json:"hsn_code"`
	Unit            string           `json:"unit"`
	Quantity        decimal.Decimal  `json:"quantity"`
	Rate            decimal.Decimal  `json:"rate"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
	DiscountAmount  decimal.Decimal  `json:"discount_amount"`
	TaxRate         *decimal.Decimal `json:"tax_rate"`
}

type CreateInvoiceRequest struct {
	ClientName    string `json:"client_name" binding:"required"`
	ClientEmail   string `json:"client_email"`
	ClientAddress string `json:"client_address"`
	ClientTaxID   string `json:"client_tax_id"`
	ClientState   string `json:"client_state"`
	SellerState   string `json:"seller_state"`

	Notes string     `json:"notes"`
	DueAt *time.Time `json:"due_at"`

	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`

	Items []LineItemInput `json:"items"`
}

// UpdateInvoiceRequest replaces the mutable header fields and, when
// Items is non-nil, the whole line set. Nil pointers leave the current
// value untouched.
type UpdateInvoiceRequest struct {
	ClientName    *string `json:"client_name"`
	ClientEmail   *string `json:"client_email"`
	ClientAddress *string `json:"client_address"`
	ClientTaxID   *string `json:"client_tax_id"`
	ClientState   *string `json:"client_state"`
	SellerState   *string `json:"seller_state"`

	Notes *string    `json:"notes"`
	DueAt *time.Time `json:"due_at"`

	DiscountPercent *decimal.Decimal `json:"discount_percent"`
	DiscountAmount  *decimal.Decimal `json:"discount_amount"`

	Items []LineItemInput `json:"items"`
}

type ListInvoiceRequest struct {
	pagination.Pagination
	Status *documentdomain.Status `form:"status"`
}

type ListInvoiceResponse struct {
	Invoices []Invoice           `json:"invoices"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

// Service owns the invoice lifecycle. All operations are scoped to the
// account carried by the context; an invoice belonging to another
// account is indistinguishable from one that does not exist.
type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	Update(ctx context.Context, id string, req UpdateInvoiceRequest) (Invoice, error)
	AddItem(ctx context.Context, id string, item LineItemInput) (Invoice, error)
	RemoveItem(ctx context.Context, id, itemID string) (Invoice, error)
	Get(ctx context.Context, id string) (Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	Delete(ctx context.Context, id string) error

	Finalize(ctx context.Context, id string) (Invoice, error)
	MarkSent(ctx context.Context, id string) (Invoice, error)
	MarkPaid(ctx context.Context, id string) (Invoice, error)
	Cancel(ctx context.Context, id string) (Invoice, error)
}
