package downloadtoken

import (
	"github.com/ledgerline/billing/internal/downloadtoken/service"
	"go.uber.org/fx"
)

var Module = fx.Module("downloadtoken",
	fx.Provide(
		service.NewService,
	),
)
