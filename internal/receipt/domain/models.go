package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	documentdomain "github.com/ledgerline/billing/internal/document/domain"
	"github.com/shopspring/decimal"
)

// ReceiptType distinguishes what a receipt acknowledges.
type ReceiptType string

const (
	TypeSubscriptionPayment ReceiptType = "SUBSCRIPTION_PAYMENT"
	TypeInvoicePayment      ReceiptType = "INVOICE_PAYMENT"
)

func (t ReceiptType) Valid() bool {
	return t == TypeSubscriptionPayment || t == TypeInvoicePayment
}

// Receipt acknowledges a completed payment. It is born Finalized with
// its period-scoped number already stamped; the amounts are either
// back-split from a tax-inclusive total or copied forward from the
// paid invoice, never recomputed afterwards.
type Receipt struct {
	ID            snowflake.ID          `gorm:"primaryKey"`
	UserID        snowflake.ID          `gorm:"index;not null"`
	ReceiptNumber string                `gorm:"type:text;not null;uniqueIndex"`
	Type          ReceiptType           `gorm:"type:text;not null"`
	Status        documentdomain.Status `gorm:"type:text;not null;index"`

	InvoiceID *snowflake.ID `gorm:"index"`

	CustomerName  string `gorm:"type:text;not null"`
	CustomerEmail string `gorm:"type:text"`
	Description   string `gorm:"type:text"`

	PaymentMethod    string `gorm:"type:text"`
	PaymentReference string `gorm:"type:text"`

	Currency       string `gorm:"type:text;not null"`
	CurrencySymbol string `gorm:"type:text"`

	TaxRate decimal.Decimal `gorm:"type:numeric"`
	Amount  decimal.Decimal `gorm:"type:numeric"`
	Tax     decimal.Decimal `gorm:"type:numeric"`
	Total   decimal.Decimal `gorm:"type:numeric"`

	PDFGenerated bool   `gorm:"not null;default:false"`
	PDFPath      string `gorm:"type:text"`

	IssuedAt    time.Time `gorm:"not null"`
	SentAt      *time.Time
	PaidAt      *time.Time
	CancelledAt *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (Receipt) TableName() string { return "receipts" }
