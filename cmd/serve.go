package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/monozip/internal/config"
	"github.com/jmehdipour/monozip/internal/db"
	httpSrv "github.com/jmehdipour/monozip/internal/http"
	"github.com/jmehdipour/monozip/internal/logger"
	"github.com/jmehdipour/monozip/internal/repository"
	"github.com/jmehdipour/monozip/internal/service/clients"
	"github.com/jmehdipour/monozip/internal/session"
	"github.com/jmehdipour/monozip/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)
		defer func() { _ = logger.Log.Sync() }()
		log := logger.Named("serve")

		if err := cfg.ValidateServe(); err != nil {
			return err
		}

		// MySQL may be down at boot; the store serves the defaults until it is back.
		var mysqlDB *sqlx.DB
		if cfg.MySQL.DSN != "" {
			dbx, err := db.OpenMySQL(cfg.MySQL.DSN, db.PoolFromConfig(cfg.MySQL))
			if err != nil {
				log.Warn("mysql disabled", zap.Error(err))
			} else {
				mysqlDB = dbx
				defer mysqlDB.Close()
				if err := db.Ping(mysqlDB, cfg.MySQL.PingTimeout); err != nil {
					log.Warn("mysql unreachable, serving default clients", zap.Error(err))
				}
			}
		} else {
			log.Warn("mysql.dsn is empty, serving default clients read-only")
		}

		var (
			rdb      *redis.Client
			sessions session.Store = session.NewMemoryStore(cfg.Auth.SessionTTL)
		)
		if cfg.Redis.Addr != "" {
			rdb, err = db.NewRedisClient(db.RedisOptsFromConfig(cfg.Redis))
			if err != nil {
				return fmt.Errorf("redis connect: %w", err)
			}
			defer func() { _ = rdb.Close() }()
			sessions = session.NewRedisStore(rdb, cfg.Auth.SessionTTL)
		} else {
			log.Info("redis.addr is empty, sessions kept in memory and attempt limiting disabled")
		}

		var events repository.EventsRepository
		if cfg.ClickHouse.DSN != "" {
			chDB, err := db.NewClickHouseConnection(cfg.ClickHouse.DSN, db.PoolFromConfig(cfg.ClickHouse))
			if err != nil {
				log.Warn("clickhouse unreachable, audit log disabled", zap.Error(err))
			} else {
				defer func() { _ = chDB.Close() }()
				events = repository.NewCHEventsRepository(chDB)
			}
		}

		st := store.New(mysqlDB, store.Options{
			EventsTopic:      cfg.Kafka.Topic,
			BreakerThreshold: cfg.Store.BreakerThreshold,
			BreakerOpenFor:   cfg.Store.BreakerOpenFor,
			Logger:           logger.Named("store"),
		})

		server := httpSrv.NewServer(httpSrv.Deps{
			Config:  cfg,
			Gate:    session.NewGate(sessions, cfg.Auth.LoginPassword),
			Clients: clients.New(st, cfg.Auth.AdminPassword),
			Events:  events,
			Redis:   rdb,
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}

		timeout := cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}
