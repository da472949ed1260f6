package receipt

import (
	"github.com/ledgerline/billing/internal/receipt/service"
	"go.uber.org/fx"
)

var Module = fx.Module("receipt",
	fx.Provide(
		service.NewService,
	),
)
