package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Allocator issues strictly increasing, never-reused numbers for a named
// scope. Next runs inside the caller's transaction so the number and the
// document it stamps commit (or roll back) together; a rolled-back
// caller may burn a number but can never duplicate one.
type Allocator interface {
	Next(ctx context.Context, tx *gorm.DB, scope string) (int64, error)

	// NextInvoiceNumber draws from the per-user invoice sequence and
	// returns the formatted number alongside the raw value.
	NextInvoiceNumber(ctx context.Context, tx *gorm.DB, userID snowflake.ID, at time.Time) (string, int64, error)

	// NextReceiptNumber draws from the receipt sequence for the period
	// containing at. The period key is derived from the wall clock at
	// allocation time, never cached.
	NextReceiptNumber(ctx context.Context, tx *gorm.DB, at time.Time) (string, int64, error)
}

var (
	ErrInvalidScope = errors.New("invalid_scope")
)
