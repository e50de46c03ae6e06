package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/domijob/domijob/internal/clock"
	"github.com/domijob/domijob/internal/config"
	"github.com/domijob/domijob/internal/logger"
	"github.com/domijob/domijob/internal/migration"
	"github.com/domijob/domijob/internal/server"
	"github.com/domijob/domijob/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
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
