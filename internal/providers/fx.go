package providers

import (
	"github.com/ledgerline/billing/internal/providers/email"
	"github.com/ledgerline/billing/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
