package migration

import (
	auditdomain "github.com/ledgerline/billing/internal/audit/domain"
	"github.com/ledgerline/billing/internal/config"
	tokendomain "github.com/ledgerline/billing/internal/downloadtoken/domain"
	invoicedomain "github.com/ledgerline/billing/internal/invoice/domain"
	receiptdomain "github.com/ledgerline/billing/internal/receipt/domain"
	sequencedomain "github.com/ledgerline/billing/internal/sequence/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite is for local development only; AutoMigrate keeps
			// it in step with the models without versioned SQL.
			return conn.AutoMigrate(
				&invoicedomain.Invoice{},
				&invoicedomain.InvoiceItem{},
				&receiptdomain.Receipt{},
				&tokendomain.DownloadToken{},
				&sequencedomain.SequenceCounter{},
				&auditdomain.AuditLog{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
