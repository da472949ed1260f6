package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerline/billing/internal/config"
	"github.com/ledgerline/billing/internal/logger"
	"github.com/ledgerline/billing/internal/migration"
	"github.com/ledgerline/billing/internal/server"
	"github.com/ledgerline/billing/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

// RegisterSnowflake builds the process-wide ID generator. Each replica
// needs its own NODE_ID for ID uniqueness across the fleet.
func RegisterSnowflake() (*snowflake.Node, error) {
	nodeID := int64(1)
	if raw := os.Getenv("NODE_ID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		nodeID = parsed
	}
	return snowflake.NewNode(nodeID)
}
