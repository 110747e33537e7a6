package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/catalog"
	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/ledger"
	"github.com/smallbiznis/orderbridge/internal/lock"
	"github.com/smallbiznis/orderbridge/internal/migration"
	"github.com/smallbiznis/orderbridge/internal/observability"
	"github.com/smallbiznis/orderbridge/internal/ordersource"
	"github.com/smallbiznis/orderbridge/internal/pos"
	"github.com/smallbiznis/orderbridge/internal/promo"
	"github.com/smallbiznis/orderbridge/internal/reconciler"
	"github.com/smallbiznis/orderbridge/internal/scheduler"
	"github.com/smallbiznis/orderbridge/internal/server"
	"github.com/smallbiznis/orderbridge/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,

		ordersource.Module,
		pos.Module,

		catalog.Module,
		ledger.Module,
		promo.Module,
		reconciler.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
