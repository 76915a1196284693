// cmd/economy-service/main.go
package main

import (
	"context"
	"os"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"vault/internal/pkg/bootstrap"
	"vault/internal/pkg/logger"
	"vault/internal/pkg/mq"
	"vault/internal/service/economy/application"
	"vault/internal/service/economy/domain"
	"vault/internal/service/economy/domain/port"
	"vault/internal/service/economy/infrastructure"
	"vault/internal/service/economy/infrastructure/adapter"
	"vault/internal/service/economy/infrastructure/memory"
	"vault/internal/service/economy/infrastructure/rule"
	"vault/internal/service/economy/interfaces"
	"vault/internal/zookeeper"
)

type store interface {
	domain.TxManager
	domain.OutboxStore
}

// main 是应用的组装根：创建并组装所有依赖项，然后启动服务。
func main() {
	cfg, err := loadConfig()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.Service.Name, cfg.Service.LogLevel)
	ctx := context.Background()
	var cleanup []func()

	// 1. 存储
	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to open store")
	}

	// 2. 可选的基础设施
	var cache port.CatalogCache
	if cfg.Infra.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Infra.Redis.Addr,
			Password: cfg.Infra.Redis.Password,
			DB:       cfg.Infra.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.L().Fatal().Err(err).Str("addr", cfg.Infra.Redis.Addr).Msg("failed to connect to redis")
		}
		cleanup = append(cleanup, func() { _ = rdb.Close() })
		cache = adapter.NewCatalogRedisCache(rdb, cfg.Infra.Redis.CacheTTL)
	}

	var locker port.MintLocker = infrastructure.NewLocalMintLocker()
	if len(cfg.Infra.Zookeeper.Servers) > 0 {
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			logger.L().Fatal().Err(err).Msg("failed to connect to zookeeper")
		}
		cleanup = append(cleanup, conn.Close)
		locker = infrastructure.NewZookeeperMintLocker(conn)
	}

	payout, err := rule.NewCELPayoutPolicy(cfg.Economy.PayoutExpression)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("invalid payout expression")
	}

	// 3. 应用服务
	tracer := otel.Tracer(cfg.Service.Name)
	ledger := application.NewCoinLedger(cfg.Economy.StartingBalance)
	catalog := application.NewGiftCatalog(cache)
	inventory := application.NewInventoryStore()
	registry := application.NewNFTRegistry(domain.DefaultRandom())
	market := application.NewMarketplaceEngine(st, ledger, inventory, registry, locker, cfg.Economy.RegiftFee, tracer)
	coord := application.NewCoordinator(st, ledger, catalog, inventory, registry, market, payout, tracer)

	if n, err := coord.SeedCatalog(ctx, cfg.Economy.Seed); err != nil {
		logger.L().Fatal().Err(err).Msg("failed to seed gift catalog")
	} else if n > 0 {
		logger.L().Info().Int("gifts", n).Msg("gift catalog seeded")
	}

	// 4. outbox 中继
	var workers []bootstrap.Worker
	if len(cfg.Infra.Kafka.Brokers) > 0 {
		topic := cfg.Infra.Kafka.ChatTopic
		if topic == "" {
			topic = adapter.ChatTopic
		}
		messenger := adapter.NewChatKafkaAdapter(mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, topic))
		cleanup = append(cleanup, func() { _ = messenger.Close() })
		relay := infrastructure.NewOutboxRelay(st, messenger, cfg.Economy.OutboxInterval, cfg.Economy.OutboxBatchSize)
		workers = append(workers, relay.Run)
	} else {
		logger.L().Warn().Msg("no kafka brokers configured, chat records stay in the outbox")
	}

	err = bootstrap.StartService(bootstrap.AppInfo{
		Config:  &cfg.Config,
		Handler: interfaces.NewEconomyHandler(coord, market).Routes(),
		Workers: workers,
		Cleanup: cleanup,
	})
	if err != nil {
		logger.L().Error().Err(err).Msg("service exited with error")
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *economyConfig) (store, error) {
	if cfg.Infra.Database.DSN == "" {
		logger.L().Warn().Msg("no database configured, using in-memory store")
		return memory.NewStore(), nil
	}
	db, err := gorm.Open(mysql.Open(cfg.Infra.Database.DSN), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil && cfg.Infra.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Infra.Database.MaxOpenConns)
	}
	gs := infrastructure.NewGormStore(db)
	if cfg.Infra.Database.AutoMigrate {
		if err := gs.AutoMigrate(ctx); err != nil {
			return nil, err
		}
	}
	return gs, nil
}
