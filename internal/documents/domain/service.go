// Package domain defines the document delivery facade: PDF rendering,
// one-time download links and their redemption.
package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrResourceNotReady marks a document whose lifecycle state or
	// failed render leaves nothing servable yet.
	ErrResourceNotReady = errors.New("document_not_ready")

	ErrMissingRecipient = errors.New("missing_recipient_email")
)

// DownloadGrant is the issue-side result: the secret appears here once
// and nowhere else.
type DownloadGrant struct {
	Secret       string    `json:"secret"`
	URL          string    `json:"url"`
	ExpiresAt    time.Time `json:"expires_at"`
	MaxDownloads int       `json:"max_downloads"`
}

// Download points at the rendered artifact a redeemed token unlocks.
type Download struct {
	Path        string
	Filename    string
	ContentType string
}

// Service is the delivery facade over invoices, receipts, tokens and
// the PDF renderer.
type Service interface {
	// RequestInvoiceDownload renders the invoice PDF on first demand
	// and issues a download token under the configured policy. The
	// invoice must be finalized; drafts and cancelled documents have
	// no servable artifact.
	RequestInvoiceDownload(ctx context.Context, invoiceID string) (DownloadGrant, error)

	// RequestReceiptDownload is the receipt-side counterpart. The
	// receipt must be paid.
	RequestReceiptDownload(ctx context.Context, receiptID string) (DownloadGrant, error)

	// Redeem burns one token redemption and resolves the bound
	// artifact. Any dead or unknown secret reports the token-invalid
	// result from the validator unchanged.
	Redeem(ctx context.Context, secret, clientAddr string) (Download, error)

	// EmailInvoiceDownloadLink issues a fresh grant and mails the link
	// to the invoice's client address.
	EmailInvoiceDownloadLink(ctx context.Context, invoiceID string) (DownloadGrant, error)

	// EmailReceiptDownloadLink mails a fresh grant to the receipt's
	// customer address.
	EmailReceiptDownloadLink(ctx context.Context, receiptID string) (DownloadGrant, error)
}
