package documents

import (
	"github.com/ledgerline/billing/internal/documents/service"
	"go.uber.org/fx"
)

var Module = fx.Module("documents",
	fx.Provide(
		service.NewService,
	),
)
