package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	documentdomain "github.com/ledgerline/billing/internal/document/domain"
	"github.com/shopspring/decimal"
)

// Invoice is an owner-scoped billing document. The number stays nil
// until the document is finalized; amounts are engine-computed and
// become immutable at the same moment.
type Invoice struct {
	ID            snowflake.ID          `gorm:"primaryKey"`
	UserID        snowflake.ID          `gorm:"index;not null"`
	InvoiceNumber *string               `gorm:"type:text"`
	Status        documentdomain.Status `gorm:"type:text;not null;index"`

	ClientName    string `gorm:"type:text;not null"`
	ClientEmail   string `gorm:"type:text"`
	ClientAddress string `gorm:"type:text"`
	ClientTaxID   string `gorm:"type:text"`
	ClientState   string `gorm:"type:text"`
	SellerState   string `gorm:"type:text"`

	Currency       string `gorm:"type:text;not null"`
	CurrencySymbol string `gorm:"type:text"`
	Notes          string `gorm:"type:text"`

	DiscountPercent decimal.Decimal `gorm:"type:numeric"`
	DiscountAmount  decimal.Decimal `gorm:"type:numeric"`

	Subtotal      decimal.Decimal `gorm:"type:numeric"`
	TaxableAmount decimal.Decimal `gorm:"type:numeric"`
	TaxA          decimal.Decimal `gorm:"type:numeric"`
	TaxB          decimal.Decimal `gorm:"type:numeric"`
	TaxCross      decimal.Decimal `gorm:"type:numeric"`
	TotalTax      decimal.Decimal `gorm:"type:numeric"`
	RoundOff      decimal.Decimal `gorm:"type:numeric"`
	GrandTotal    decimal.Decimal `gorm:"type:numeric"`

	PDFGenerated bool   `gorm:"not null;default:false"`
	PDFPath      string `gorm:"type:text"`

	DueAt       *time.Time
	FinalizedAt *time.Time
	SentAt      *time.Time
	PaidAt      *time.Time
	CancelledAt *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Items []InvoiceItem `gorm:"-"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem is one ordered line of an invoice together with its
// engine-computed breakdown. Rows are immutable once the parent
// finalizes.
type InvoiceItem struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	InvoiceID snowflake.ID `gorm:"index;not null"`
	Position  int          `gorm:"not null"`

	Description string `gorm:"type:text;not null"`
	HSNCode     string `gorm:"type:text"`
	Unit        string `gorm:"type:text"`

	Quantity        decimal.Decimal `gorm:"type:numeric;not null"`
	Rate            decimal.Decimal `gorm:"type:numeric;not null"`
	DiscountPercent decimal.Decimal `gorm:"type:numeric"`
	DiscountAmount  decimal.Decimal `gorm:"type:numeric"`
	TaxRate         decimal.Decimal `gorm:"type:numeric"`
	Jurisdiction    string          `gorm:"type:text"`

	LineTotal     decimal.Decimal `gorm:"type:numeric"`
	Discount      decimal.Decimal `gorm:"type:numeric"`
	TaxableAmount decimal.Decimal `gorm:"type:numeric"`
	TaxA          decimal.Decimal `gorm:"type:numeric"`
	TaxB          decimal.Decimal `gorm:"type:numeric"`
	TaxCross      decimal.Decimal `gorm:"type:numeric"`
	TotalTax      decimal.Decimal `gorm:"type:numeric"`
	Total         decimal.Decimal `gorm:"type:numeric"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }
