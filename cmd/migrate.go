package cmd

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/jmehdipour/monozip/internal/config"
	"github.com/jmehdipour/monozip/internal/db"
	"github.com/jmehdipour/monozip/internal/logger"
	"github.com/jmehdipour/monozip/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the MySQL tables and, when configured, the ClickHouse audit table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)
		log := logger.Named("migrate")
		ctx := context.Background()

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.PoolFromConfig(cfg.MySQL))
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		n, err := apply(ctx, sqlDB, migrations.MySQL, "mysql")
		if err != nil {
			return fmt.Errorf("mysql migration: %w", err)
		}
		log.Info("mysql schema applied", zap.Int("statements", n))

		if cfg.ClickHouse.DSN == "" {
			log.Info("clickhouse.dsn is empty, skipping audit schema")
			return nil
		}
		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse.DSN, db.PoolFromConfig(cfg.ClickHouse))
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer chDB.Close()

		n, err = apply(ctx, chDB, migrations.ClickHouse, "clickhouse")
		if err != nil {
			return fmt.Errorf("clickhouse migration: %w", err)
		}
		log.Info("clickhouse schema applied", zap.Int("statements", n))
		return nil
	},
}

func apply(ctx context.Context, dbx *sqlx.DB, fsys fs.FS, dir string) (int, error) {
	stmts, err := migrations.Statements(fsys, dir)
	if err != nil {
		return 0, err
	}
	for i, s := range stmts {
		if _, err := dbx.ExecContext(ctx, s); err != nil {
			return i, fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return len(stmts), nil
}
