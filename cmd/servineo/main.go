package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/servineo/servineo/internal/migration"
	"github.com/servineo/servineo/internal/observability"
	"github.com/servineo/servineo/internal/server"
	"github.com/servineo/servineo/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
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
