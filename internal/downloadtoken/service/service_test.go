package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/ledgerline/billing/internal/clock"
	"github.com/ledgerline/billing/internal/config"
	tokendomain "github.com/ledgerline/billing/internal/downloadtoken/domain"
	"github.com/ledgerline/billing/internal/usercontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	svc    tokendomain.Service
	db     *gorm.DB
	clock  *clock.FakeClock
	userID snowflake.ID
	node   *snowflake.Node
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tokendomain.DownloadToken{}))

	// One connection so concurrent redeems contend on the conditional
	// update instead of sqlite's writer lock.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, time.March, 7, 10, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   fake,
		Billing: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
	})

	return &testEnv{
		svc:    svc,
		db:     db,
		clock:  fake,
		userID: node.Generate(),
		node:   node,
	}
}

func (e *testEnv) ownerCtx() context.Context {
	return usercontext.WithUserID(context.Background(), e.userID)
}

func (e *testEnv) issueRequest() tokendomain.IssueRequest {
	invoiceID := e.node.Generate()
	return tokendomain.IssueRequest{
		UserID:    e.userID,
		InvoiceID: &invoiceID,
	}
}

func TestIssue_SecretNeverPersisted(t *testing.T) {
	env := newTestEnv(t)

	issued, err := env.svc.Issue(context.Background(), env.issueRequest())
	require.NoError(t, err)

	// 32 bytes of entropy survive the url-safe encoding.
	assert.GreaterOrEqual(t, len(issued.Secret), 43)
	assert.Equal(t, tokendomain.StateActive, issued.Token.State)
	assert.Equal(t, 5, issued.Token.MaxRedemptions)
	assert.Equal(t, env.clock.Now().Add(24*time.Hour), issued.Token.ExpiresAt)

	var stored tokendomain.DownloadToken
	require.NoError(t, env.db.First(&stored, "id = ?", issued.Token.ID).Error)
	assert.NotEqual(t, issued.Secret, stored.TokenHash)
	assert.Len(t, stored.TokenHash, 64)
	assert.NotContains(t, stored.TokenHash, issued.Secret)
}

func TestIssue_RequiresExactlyOneResource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Issue(ctx, tokendomain.IssueRequest{UserID: env.userID})
	assert.ErrorIs(t, err, tokendomain.ErrInvalidResource)

	invoiceID := env.node.Generate()
	receiptID := env.node.Generate()
	_, err = env.svc.Issue(ctx, tokendomain.IssueRequest{
		UserID:    env.userID,
		InvoiceID: &invoiceID,
		ReceiptID: &receiptID,
	})
	assert.ErrorIs(t, err, tokendomain.ErrInvalidResource)
}

func TestRedeem_CountsAndExhausts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := env.issueRequest()
	req.MaxRedemptions = 2
	issued, err := env.svc.Issue(ctx, req)
	require.NoError(t, err)

	first, err := env.svc.Redeem(ctx, issued.Secret, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.RedemptionCount)
	assert.Equal(t, tokendomain.StateActive, first.State)

	second, err := env.svc.Redeem(ctx, issued.Secret, "10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, 2, second.RedemptionCount)
	assert.Equal(t, tokendomain.StateExhausted, second.State)
	assert.Equal(t, "10.0.0.1,10.0.0.2", second.SeenAddrs)

	_, err = env.svc.Redeem(ctx, issued.Secret, "10.0.0.3")
	assert.ErrorIs(t, err, tokendomain.ErrTokenInvalid)
}

func TestRedeem_QuotaHoldsUnderConcurrency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const quota = 3
	req := env.issueRequest()
	req.MaxRedemptions = quota
	issued, err := env.svc.Issue(ctx, req)
	require.NoError(t, err)

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Redeem(ctx, issued.Secret, "10.0.0.9")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	admitted := 0
	for err := range errs {
		if err == nil {
			admitted++
		} else {
			assert.ErrorIs(t, err, tokendomain.ErrTokenInvalid)
		}
	}
	assert.Equal(t, quota, admitted)
}

func TestRedeem_ExpiredTokenInvalid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := env.issueRequest()
	req.TTL = time.Hour
	issued, err := env.svc.Issue(ctx, req)
	require.NoError(t, err)

	// The deadline itself is already dead: expiry is exclusive.
	env.clock.Advance(time.Hour)
	require.Equal(t, issued.ExpiresAt, env.clock.Now())
	_, err = env.svc.Redeem(ctx, issued.Secret, "10.0.0.1")
	assert.ErrorIs(t, err, tokendomain.ErrTokenInvalid)

	env.clock.Advance(time.Hour)
	_, err = env.svc.Redeem(ctx, issued.Secret, "10.0.0.1")
	assert.ErrorIs(t, err, tokendomain.ErrTokenInvalid)

	// The row is untouched; only the clock disqualified it.
	var stored tokendomain.DownloadToken
	require.NoError(t, env.db.First(&stored, "id = ?", issued.Token.ID).Error)
	assert.Equal(t, tokendomain.StateActive, stored.State)
	assert.Equal(t, 0, stored.RedemptionCount)
}

func TestRedeem_UnknownSecretInvalid(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Redeem(context.Background(), "not-a-real-secret", "10.0.0.1")
	assert.ErrorIs(t, err, tokendomain.ErrTokenInvalid)

	_, err = env.svc.Redeem(context.Background(), "  ", "10.0.0.1")
	assert.ErrorIs(t, err, tokendomain.ErrTokenInvalid)
}

func TestRedeem_DeduplicatesAddrs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	issued, err := env.svc.Issue(ctx, env.issueRequest())
	require.NoError(t, err)

	_, err = env.svc.Redeem(ctx, issued.Secret, "10.0.0.1")
	require.NoError(t, err)
	token, err := env.svc.Redeem(ctx, issued.Secret, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", token.SeenAddrs)
	require.NotNil(t, token.FirstAccessedAt)
	require.NotNil(t, token.LastAccessedAt)
}

func TestRevoke_KillsActiveToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.ownerCtx()

	issued, err := env.svc.Issue(ctx, env.issueRequest())
	require.NoError(t, err)

	require.NoError(t, env.svc.Revoke(ctx, issued.Token.ID.String()))

	_, err = env.svc.Redeem(ctx, issued.Secret, "10.0.0.1")
	assert.ErrorIs(t, err, tokendomain.ErrTokenInvalid)

	// Revoking twice reports not found, the token is already dead.
	assert.ErrorIs(t, env.svc.Revoke(ctx, issued.Token.ID.String()), tokendomain.ErrTokenNotFound)
}

func TestRevoke_ScopedToOwner(t *testing.T) {
	env := newTestEnv(t)

	issued, err := env.svc.Issue(env.ownerCtx(), env.issueRequest())
	require.NoError(t, err)
	tokenID := issued.Token.ID.String()

	// A caller with no identity cannot revoke at all.
	assert.ErrorIs(t, env.svc.Revoke(context.Background(), tokenID), tokendomain.ErrInvalidUser)

	// A stranger who learned the ID sees the token as missing.
	strangerNode, err := snowflake.NewNode(2)
	require.NoError(t, err)
	strangerCtx := usercontext.WithUserID(context.Background(), strangerNode.Generate())
	assert.ErrorIs(t, env.svc.Revoke(strangerCtx, tokenID), tokendomain.ErrTokenNotFound)

	// The owner's link is untouched by either attempt.
	token, err := env.svc.Redeem(context.Background(), issued.Secret, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, tokendomain.StateActive, token.State)

	require.NoError(t, env.svc.Revoke(env.ownerCtx(), tokenID))
	_, err = env.svc.Redeem(context.Background(), issued.Secret, "10.0.0.2")
	assert.ErrorIs(t, err, tokendomain.ErrTokenInvalid)
}
