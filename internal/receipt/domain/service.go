package domain

import (
	"context"
	"errors"

	documentdomain "github.com/ledgerline/billing/internal/document/domain"
	"github.com/ledgerline/billing/pkg/db/pagination"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidReceiptID   = errors.New("invalid_receipt_id")
	ErrReceiptNotFound    = errors.New("receipt_not_found")
	ErrInvalidReceiptType = errors.New("invalid_receipt_type")
	ErrInvalidTotal       = errors.New("invalid_receipt_total")
	ErrMissingCustomer    = errors.New("missing_customer_name")
)

// CreateFromPaymentRequest acknowledges a standalone payment whose
// Total already includes tax. A nil TaxRate falls back to the
// configured default rate.
type CreateFromPaymentRequest struct {
	Type          ReceiptType `json:"type"`
	CustomerName  string      `json:"customer_name" binding:"required"`
	CustomerEmail string      `json:"customer_email"`
	Description   string      `json:"description"`

	Total   decimal.Decimal  `json:"total"`
	TaxRate *decimal.Decimal `json:"tax_rate"`

	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
}

// CreateFromInvoicePaymentRequest records a payment against an issued
// invoice. The receipt copies the invoice totals forward and the
// invoice moves to Paid in the same transaction.
type CreateFromInvoicePaymentRequest struct {
	InvoiceID        string `json:"invoice_id" binding:"required"`
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
}

type ListReceiptRequest struct {
	pagination.Pagination
	Status *documentdomain.Status `form:"status"`
	Type   *ReceiptType           `form:"type"`
}

type ListReceiptResponse struct {
	Receipts []Receipt           `json:"receipts"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

// Service owns the receipt lifecycle. Operations are scoped to the
// account carried by the context.
type Service interface {
	CreateFromPayment(ctx context.Context, req CreateFromPaymentRequest) (Receipt, error)
	CreateFromInvoicePayment(ctx context.Context, req CreateFromInvoicePaymentRequest) (Receipt, error)
	Get(ctx context.Context, id string) (Receipt, error)
	List(ctx context.Context, req ListReceiptRequest) (ListReceiptResponse, error)

	MarkSent(ctx context.Context, id string) (Receipt, error)
	MarkPaid(ctx context.Context, id string) (Receipt, error)
	Cancel(ctx context.Context, id string) (Receipt, error)
}
