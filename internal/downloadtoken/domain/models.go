package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// State is the redemption state of a token. Expiry is judged against
// the clock at redemption time rather than stored as a state, so an
// expired token row still reads ACTIVE.
type State string

const (
	StateActive    State = "ACTIVE"
	StateExhausted State = "EXHAUSTED"
)

// DownloadToken is the persisted side of a one-time download link.
// Only the sha256 of the secret is stored; the secret itself exists
// once, in the issue response, and is never recoverable from here.
// Exactly one of InvoiceID and ReceiptID is set.
type DownloadToken struct {
	ID     snowflake.ID `gorm:"primaryKey"`
	UserID snowflake.ID `gorm:"index;not null"`

	InvoiceID *snowflake.ID `gorm:"index"`
	ReceiptID *snowflake.ID `gorm:"index"`

	TokenHash string `gorm:"type:text;not null;uniqueIndex"`
	State     State  `gorm:"type:text;not null"`

	ExpiresAt       time.Time `gorm:"not null"`
	MaxRedemptions  int       `gorm:"not null"`
	RedemptionCount int       `gorm:"not null;default:0"`

	FirstAccessedAt *time.Time
	LastAccessedAt  *time.Time
	SeenAddrs       string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (DownloadToken) TableName() string { return "download_tokens" }

// Exhausted reports whether the quota is spent.
func (t DownloadToken) Exhausted() bool {
	return t.State == StateExhausted
}
