package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	// ErrTokenInvalid is the single negative redemption result. Unknown,
	// expired, exhausted and revoked secrets are indistinguishable to
	// the caller; distinguishing them would leak token state to whoever
	// holds a dead link.
	ErrTokenInvalid = errors.New("token_invalid")

	ErrTokenNotFound   = errors.New("token_not_found")
	ErrInvalidUser     = errors.New("invalid_user")
	ErrInvalidResource = errors.New("invalid_token_resource")
	ErrInvalidPolicy   = errors.New("invalid_token_policy")
)

// IssueRequest binds a fresh token to exactly one resource. Zero TTL
// or MaxRedemptions fall back to the configured policy.
type IssueRequest struct {
	UserID    snowflake.ID
	InvoiceID *snowflake.ID
	ReceiptID *snowflake.ID

	TTL            time.Duration
	MaxRedemptions int
}

// Issued carries the one-time secret. It is returned exactly once and
// never persisted.
type Issued struct {
	Secret    string
	ExpiresAt time.Time
	Token     DownloadToken
}

// Service issues and validates download tokens.
type Service interface {
	Issue(ctx context.Context, req IssueRequest) (Issued, error)

	// Redeem burns one redemption of the token matching secret. The
	// quota check, the count increment and the exhaustion flip happen
	// in a single atomic step; k concurrent redeems of a k-quota token
	// admit exactly k callers.
	Redeem(ctx context.Context, secret, clientAddr string) (DownloadToken, error)

	// Revoke deactivates a token owned by the account on the context.
	// Another owner's token is indistinguishable from a missing one.
	// Redeems after revocation report the same negative result as any
	// dead token.
	Revoke(ctx context.Context, id string) error
}
