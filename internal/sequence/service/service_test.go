package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/ledgerline/billing/internal/config"
	sequencedomain "github.com/ledgerline/billing/internal/sequence/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestAllocator(t *testing.T) (sequencedomain.Allocator, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&sequencedomain.SequenceCounter{}))

	// Serialize connections so concurrent allocations exercise the
	// atomic statement rather than sqlite's writer lock.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	alloc := NewAllocator(AllocatorParam{
		Log:     zap.NewNop(),
		Billing: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
	})
	return alloc, db
}

func TestAllocator_NextIsMonotonic(t *testing.T) {
	alloc, db := newTestAllocator(t)
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		got, err := alloc.Next(ctx, db, "invoice:user:1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestAllocator_ScopesAreIndependent(t *testing.T) {
	alloc, db := newTestAllocator(t)
	ctx := context.Background()

	a, err := alloc.Next(ctx, db, "invoice:user:1")
	require.NoError(t, err)
	b, err := alloc.Next(ctx, db, "invoice:user:2")
	require.NoError(t, err)

	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(1), b)
}

func TestAllocator_ConcurrentCallersGetDistinctNumbers(t *testing.T) {
	alloc, db := newTestAllocator(t)
	ctx := context.Background()

	const n = 32
	results := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := alloc.Next(ctx, db, "receipt:202503")
			assert.NoError(t, err)
			results <- got
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool, n)
	for v := range results {
		assert.False(t, seen[v], "number %d issued twice", v)
		seen[v] = true
	}
	assert.Len(t, seen, n)
}

func TestAllocator_EmptyScopeRejected(t *testing.T) {
	alloc, db := newTestAllocator(t)

	_, err := alloc.Next(context.Background(), db, "  ")
	assert.ErrorIs(t, err, sequencedomain.ErrInvalidScope)
}

func TestAllocator_FormattedNumbers(t *testing.T) {
	alloc, db := newTestAllocator(t)
	ctx := context.Background()
	at := time.Date(2025, time.March, 7, 10, 0, 0, 0, time.UTC)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	userID := node.Generate()

	formatted, seq, err := alloc.NextInvoiceNumber(ctx, db, userID, at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
	assert.Equal(t, "INV-00001", formatted)

	formatted, seq, err = alloc.NextReceiptNumber(ctx, db, at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
	assert.Equal(t, "2025030001", formatted)
}

func TestAllocator_ReceiptPeriodRollsOver(t *testing.T) {
	alloc, db := newTestAllocator(t)
	ctx := context.Background()

	march := time.Date(2025, time.March, 31, 23, 0, 0, 0, time.UTC)
	april := time.Date(2025, time.April, 1, 1, 0, 0, 0, time.UTC)

	_, seq, err := alloc.NextReceiptNumber(ctx, db, march)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	_, seq, err = alloc.NextReceiptNumber(ctx, db, march)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	// New period, new counter.
	formatted, seq, err := alloc.NextReceiptNumber(ctx, db, april)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
	assert.Equal(t, "2025040001", formatted)
}
