package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerline/billing/internal/config"
	sequencedomain "github.com/ledgerline/billing/internal/sequence/domain"
	"github.com/ledgerline/billing/internal/sequence/format"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AllocatorParam struct {
	fx.In

	Log     *zap.Logger
	Billing *config.BillingConfigHolder
}

type Allocator struct {
	log     *zap.Logger
	billing *config.BillingConfigHolder
}

func NewAllocator(p AllocatorParam) sequencedomain.Allocator {
	return &Allocator{
		log:     p.Log.Named("sequence.allocator"),
		billing: p.Billing,
	}
}

// Next issues the next number for scope via a single upsert that
// increments and returns the counter in one statement. Two concurrent
// callers can never observe the same "before" value; there is no
// read-then-write window. The same SQL works on postgres and sqlite.
func (a *Allocator) Next(ctx context.Context, tx *gorm.DB, scope string) (int64, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return 0, sequencedomain.ErrInvalidScope
	}

	var next int64
	err := tx.WithContext(ctx).Raw(
		`INSERT INTO sequence_counters (scope, next_value, updated_at)
		 VALUES (?, 1, ?)
		 ON CONFLICT (scope) DO UPDATE
		 SET next_value = sequence_counters.next_value + 1,
		     updated_at = excluded.updated_at
		 RETURNING next_value`,
		scope,
		time.Now().UTC(),
	).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (a *Allocator) NextInvoiceNumber(ctx context.Context, tx *gorm.DB, userID snowflake.ID, at time.Time) (string, int64, error) {
	if userID == 0 {
		return "", 0, sequencedomain.ErrInvalidScope
	}

	seq, err := a.Next(ctx, tx, fmt.Sprintf("invoice:user:%s", userID))
	if err != nil {
		return "", 0, err
	}

	formatted, err := format.Number(a.billing.Get().InvoiceNumberTemplate, at, seq)
	if err != nil {
		return "", 0, err
	}
	return formatted, seq, nil
}

func (a *Allocator) NextReceiptNumber(ctx context.Context, tx *gorm.DB, at time.Time) (string, int64, error) {
	// The scope key carries the period, so the counter resets naturally
	// at month boundaries.
	seq, err := a.Next(ctx, tx, "receipt:"+at.UTC().Format("200601"))
	if err != nil {
		return "", 0, err
	}

	formatted, err := format.Number(a.billing.Get().ReceiptNumberTemplate, at, seq)
	if err != nil {
		return "", 0, err
	}
	return formatted, seq, nil
}
