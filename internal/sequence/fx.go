package sequence

import (
	"github.com/ledgerline/billing/internal/sequence/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence.allocator",
	fx.Provide(service.NewAllocator),
)
