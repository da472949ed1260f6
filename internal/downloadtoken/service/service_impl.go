package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/ledgerline/billing/internal/audit/domain"
	"github.com/ledgerline/billing/internal/clock"
	"github.com/ledgerline/billing/internal/config"
	tokendomain "github.com/ledgerline/billing/internal/downloadtoken/domain"
	"github.com/ledgerline/billing/internal/downloadtoken/repository"
	"github.com/ledgerline/billing/internal/usercontext"
	"github.com/ledgerline/billing/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// secretBytes is the entropy of an issued secret: 256 bits, twice the
// floor a guessing adversary makes infeasible.
const secretBytes = 32

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Billing  *config.BillingConfigHolder
	AuditSvc auditdomain.Service
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	billing  *config.BillingConfigHolder
	repo     *repository.Repository
	auditSvc auditdomain.Service
}

func NewService(p ServiceParam) tokendomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("downloadtoken.service"),
		genID: p.GenID,

		clock:    p.Clock,
		billing:  p.Billing,
		repo:     repository.New(p.DB),
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Issue(ctx context.Context, req tokendomain.IssueRequest) (tokendomain.Issued, error) {
	if req.UserID == 0 {
		return tokendomain.Issued{}, tokendomain.ErrInvalidResource
	}
	if (req.InvoiceID == nil) == (req.ReceiptID == nil) {
		return tokendomain.Issued{}, tokendomain.ErrInvalidResource
	}

	cfg := s.billing.Get()
	ttl := req.TTL
	if ttl == 0 {
		ttl = cfg.TokenTTL()
	}
	maxRedemptions := req.MaxRedemptions
	if maxRedemptions == 0 {
		maxRedemptions = cfg.TokenMaxDownloads
	}
	if ttl < 0 || maxRedemptions < 0 {
		return tokendomain.Issued{}, tokendomain.ErrInvalidPolicy
	}

	var secret string
	var token tokendomain.DownloadToken
	for attempt := 0; ; attempt++ {
		fresh, hash, err := newSecret()
		if err != nil {
			return tokendomain.Issued{}, err
		}

		now := s.clock.Now()
		token = tokendomain.DownloadToken{
			ID:     s.genID.Generate(),
			UserID: req.UserID,

			InvoiceID: req.InvoiceID,
			ReceiptID: req.ReceiptID,

			TokenHash: hash,
			State:     tokendomain.StateActive,

			ExpiresAt:      now.Add(ttl),
			MaxRedemptions: maxRedemptions,

			CreatedAt: now,
			UpdatedAt: now,
		}
		err = s.repo.Insert(ctx, s.db, &token)
		if err == nil {
			secret = fresh
			break
		}
		// A hash collision means the fresh secret already exists; draw
		// another one rather than failing the issue.
		if !db.IsDuplicateKeyErr(err) || attempt >= 2 {
			return tokendomain.Issued{}, err
		}
	}

	s.emitAudit(ctx, "token.issued", &token, nil)
	return tokendomain.Issued{
		Secret:    secret,
		ExpiresAt: token.ExpiresAt,
		Token:     token,
	}, nil
}

func (s *Service) Redeem(ctx context.Context, secret, clientAddr string) (tokendomain.DownloadToken, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return tokendomain.DownloadToken{}, tokendomain.ErrTokenInvalid
	}
	hash := hashSecret(secret)

	var redeemed tokendomain.DownloadToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		token, err := s.repo.RedeemByHash(ctx, tx, hash, s.clock.Now())
		if err != nil {
			return err
		}
		if err := s.repo.RecordSeenAddr(ctx, tx, token, clientAddr); err != nil {
			return err
		}
		redeemed = *token
		return nil
	})
	if err != nil {
		return tokendomain.DownloadToken{}, err
	}

	s.emitAudit(ctx, "token.redeemed", &redeemed, map[string]any{
		"client_addr": clientAddr,
	})
	if redeemed.Exhausted() {
		s.emitAudit(ctx, "token.exhausted", &redeemed, nil)
	}
	return redeemed, nil
}

func (s *Service) Revoke(ctx context.Context, id string) error {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return tokendomain.ErrInvalidUser
	}
	tokenID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return tokendomain.ErrTokenNotFound
	}

	revoked, err := s.repo.Revoke(ctx, tokenID, userID, s.clock.Now())
	if err != nil {
		return err
	}
	if !revoked {
		return tokendomain.ErrTokenNotFound
	}

	token, err := s.repo.FindByID(ctx, tokenID)
	if err == nil && token != nil {
		s.emitAudit(ctx, "token.revoked", token, nil)
	}
	return nil
}

func (s *Service) emitAudit(ctx context.Context, action string, token *tokendomain.DownloadToken, extra map[string]any) {
	if s.auditSvc == nil || token == nil {
		return
	}
	metadata := map[string]any{
		"state":            string(token.State),
		"redemption_count": token.RedemptionCount,
		"max_redemptions":  token.MaxRedemptions,
	}
	if token.InvoiceID != nil {
		metadata["invoice_id"] = token.InvoiceID.String()
	}
	if token.ReceiptID != nil {
		metadata["receipt_id"] = token.ReceiptID.String()
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	actorID := token.UserID
	targetID := token.ID.String()
	s.auditSvc.Record(ctx, &actorID, action, "download_token", &targetID, metadata)
}

func newSecret() (secret, hash string, err error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	secret = base64.RawURLEncoding.EncodeToString(buf)
	return secret, hashSecret(secret), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
