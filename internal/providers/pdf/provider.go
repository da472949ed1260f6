// Package pdf renders billing documents from immutable snapshots of
// their computed totals. The renderer never recomputes an amount;
// callers hand it display-ready strings.
package pdf

import (
	"context"
	"io"
)

type Provider interface {
	GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error)
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

// InvoiceData is the flattened, render-ready view of a finalized
// invoice. All monetary fields arrive formatted with their currency
// symbol.
type InvoiceData struct {
	InvoiceNumber string
	IssueDate     string
	DueDate       string
	Status        string

	SellerName  string
	SellerState string

	ClientName    string
	ClientAddress string
	ClientEmail   string
	ClientTaxID   string
	ClientState   string

	Items []InvoiceItem

	Subtotal      string
	Discount      string
	TaxableAmount string
	TaxA          string
	TaxB          string
	TaxCross      string
	RoundOff      string
	GrandTotal    string

	Notes string
}

type InvoiceItem struct {
	Description string
	HSNCode     string
	Quantity    string
	Unit        string
	Rate        string
	Discount    string
	TaxRate     string
	Amount      string
}

// ReceiptData is the render-ready view of a receipt.
type ReceiptData struct {
	ReceiptNumber string
	IssueDate     string
	Type          string

	CustomerName  string
	CustomerEmail string
	Description   string

	PaymentMethod    string
	PaymentReference string

	Amount  string
	TaxRate string
	Tax     string
	Total   string
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateInvoice(ctx context.Context, data InvoiceData) (io.Reader, error) {
	return nil, nil
}

func (p *NoOpProvider) GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	return nil, nil
}
