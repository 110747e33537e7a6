package reconciler

import (
	"github.com/smallbiznis/orderbridge/internal/reconciler/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconciler.service",
	fx.Provide(service.New),
)
