// Package repository holds the token persistence, including the one
// statement the redemption guarantees rest on.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	tokendomain "github.com/ledgerline/billing/internal/downloadtoken/domain"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, tx *gorm.DB, token *tokendomain.DownloadToken) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(token).Error
}

func (r *Repository) FindByID(ctx context.Context, id snowflake.ID) (*tokendomain.DownloadToken, error) {
	var token tokendomain.DownloadToken
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// RedeemByHash burns one redemption in a single conditional update.
// Every precondition lives in the WHERE clause and the exhaustion flip
// happens in the same statement as the increment, so no interleaving
// of concurrent callers can admit more than max_redemptions of them.
// Zero affected rows means the token is unknown, expired, exhausted or
// revoked; the caller cannot and must not tell which.
func (r *Repository) RedeemByHash(ctx context.Context, tx *gorm.DB, hash string, now time.Time) (*tokendomain.DownloadToken, error) {
	var id snowflake.ID
	err := tx.WithContext(ctx).Raw(
		`UPDATE download_tokens
		 SET redemption_count = redemption_count + 1,
		     state = CASE
		         WHEN redemption_count + 1 >= max_redemptions THEN ?
		         ELSE state
		     END,
		     first_accessed_at = COALESCE(first_accessed_at, ?),
		     last_accessed_at = ?,
		     updated_at = ?
		 WHERE token_hash = ?
		   AND state = ?
		   AND expires_at > ?
		   AND redemption_count < max_redemptions
		 RETURNING id`,
		tokendomain.StateExhausted,
		now,
		now,
		now,
		hash,
		tokendomain.StateActive,
		now,
	).Scan(&id).Error
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, tokendomain.ErrTokenInvalid
	}

	var token tokendomain.DownloadToken
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// RecordSeenAddr appends addr to the deduplicated requester set.
func (r *Repository) RecordSeenAddr(ctx context.Context, tx *gorm.DB, token *tokendomain.DownloadToken, addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	for _, seen := range strings.Split(token.SeenAddrs, ",") {
		if seen == addr {
			return nil
		}
	}

	if token.SeenAddrs == "" {
		token.SeenAddrs = addr
	} else {
		token.SeenAddrs += "," + addr
	}
	return tx.WithContext(ctx).Model(&tokendomain.DownloadToken{}).
		Where("id = ?", token.ID).
		Update("seen_addrs", token.SeenAddrs).Error
}

// Revoke flips the owner's token to the terminal exhausted state
// regardless of its remaining quota.
func (r *Repository) Revoke(ctx context.Context, id, userID snowflake.ID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&tokendomain.DownloadToken{}).
		Where("id = ? AND user_id = ? AND state = ?", id, userID, tokendomain.StateActive).
		Updates(map[string]any{
			"state":      tokendomain.StateExhausted,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
