package cmd

import (
	"context"
	"fmt"

	"github.com/jmehdipour/monozip/internal/config"
	"github.com/jmehdipour/monozip/internal/db"
	"github.com/jmehdipour/monozip/internal/logger"
	"github.com/jmehdipour/monozip/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the default clients into an empty clients table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.PoolFromConfig(cfg.MySQL))
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		st := store.New(sqlDB, store.Options{EventsTopic: cfg.Kafka.Topic})
		n, err := st.Seed(context.Background())
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}

		logger.Named("seed").Info("seed completed", zap.Int("inserted", n))
		return nil
	},
}
