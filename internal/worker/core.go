package worker

import (
	"context"
	"strings"
	"time"

	"web3-balance/internal/worker/api"
	"web3-balance/internal/worker/cache"
	"web3-balance/internal/worker/config"
	"web3-balance/internal/worker/consumer"
	"web3-balance/internal/worker/handler"
	"web3-balance/internal/worker/lifecycle"
	"web3-balance/internal/worker/model"
	"web3-balance/internal/worker/monitor"
	"web3-balance/internal/worker/oracle"
	"web3-balance/internal/worker/repository"
	"web3-balance/internal/worker/service"
	"web3-balance/internal/worker/writer"
	"web3-balance/internal/worker/writer/snapshot"
	"web3-balance/pkg/moralis"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Core struct {
	cfg            config.Config
	tl             *zap.Logger
	repo           repository.Repository
	hub            *lifecycle.Hub
	snapshotWriter *writer.AsyncBatchWriter[model.SnapshotEvent]
	consumers      []consumer.KafkaConsumer
	api            *api.Server
	metrics        *monitor.MetricsServer
}

func New(cfg config.Config, logger *zap.Logger) *Core {
	// 初始化repo
	repo := repository.New(cfg, logger)

	// 价格：http / moralis 报价 + 两级缓存
	var priceOracle oracle.Oracle = oracle.NewHTTPOracle(cfg.Oracle, logger)
	if cfg.Oracle.Provider == config.OracleProviderMoralis {
		priceOracle = oracle.NewMoralisOracle(moralis.NewMoralisClient(cfg.Moralis, logger), cfg.Chains)
	}
	if cfg.Oracle.CacheTTL > 0 {
		var rdb *redis.Client
		if cfg.Oracle.RedisPriceCache {
			rdb = repo.GetPriceRDB()
		}
		priceCache := cache.NewPriceCache(logger, rdb, time.Duration(cfg.Oracle.CacheTTL)*time.Second)
		priceOracle = oracle.NewCachedOracle(priceOracle, priceCache)
	}

	aggregator := service.NewAggregator(repo.GetGateways(), priceOracle, cfg.Aggregator, logger)

	core := &Core{
		cfg:     cfg,
		repo:    repo,
		tl:      logger,
		metrics: monitor.NewMetricsServer(cfg.Monitor, logger),
	}

	// 快照事件写 kafka（可选）
	if mq := repo.GetMQ(); mq != nil && cfg.Kafka.TopicSnapshot != "" {
		kafkaWriter := snapshot.NewKafkaSnapshotWriter(mq, logger, cfg.Kafka.TopicSnapshot)
		core.snapshotWriter = writer.NewAsyncBatchWriter(logger, kafkaWriter, 200, 500*time.Millisecond, "snapshot_writer", 1)
	}

	core.hub = lifecycle.NewHub(context.Background(), aggregator, logger, core.publish)

	// 初始化消费者
	if strings.TrimSpace(cfg.Kafka.Brokers) != "" && cfg.Kafka.TopicSession != "" {
		sessionHandler := handler.NewSessionHandler(logger, core.hub)
		core.consumers = append(core.consumers, consumer.NewSessionConsumer(cfg, logger, sessionHandler))
	}

	if cfg.API.Addr != "" {
		core.api = api.NewServer(cfg.API.Addr, logger, aggregator, core.hub)
	}
	return core
}

// publish 在 Controller 锁内调用，Submit 不阻塞
func (c *Core) publish(sessionID string, snap *model.Snapshot) {
	if c.snapshotWriter == nil {
		return
	}
	if snap == nil {
		c.snapshotWriter.Submit(model.NewClearedEvent(sessionID))
		return
	}
	c.snapshotWriter.Submit(model.NewSnapshotEvent(snap))
}

func (c *Core) Start(ctx context.Context) {
	c.tl.Info("Starting worker core...", zap.Uint64s("chains", c.repo.GetGateways().Chains()))
	// 启动监控服务
	if c.metrics != nil {
		c.metrics.Run()
	}

	// writer 不跟随 ctx 退出，Stop 时由 Close 把清空事件刷完
	if c.snapshotWriter != nil {
		c.snapshotWriter.Start(context.WithoutCancel(ctx))
	}

	// 启动消费者
	for _, cons := range c.consumers {
		go cons.Run(ctx)
	}

	if c.api != nil {
		c.api.Start()
	}
	c.tl.Info("Worker started successfully")

	// 等待外部关闭信号
	<-ctx.Done()
	c.tl.Info("Shutting down worker due to context cancellation...")
}

// Stop 优雅关闭 Core 的所有资源
func (c *Core) Stop(ctx context.Context) {
	c.tl.Info("Stopping worker core...")

	// 停止消费者
	for _, cons := range c.consumers {
		if err := cons.Stop(); err != nil {
			c.tl.Warn("stop consumer failed", zap.String("consumer", cons.ID()), zap.Error(err))
		}
	}

	if c.api != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		_ = c.api.Stop(shutdownCtx)
		cancel()
	}

	// 清空所有 session，清空事件会先进入 writer 队列
	c.hub.Close()

	if c.snapshotWriter != nil {
		c.snapshotWriter.Close()
	}

	// 停止 Prometheus 监控服务
	if c.metrics != nil {
		_ = c.metrics.Stop(context.WithoutCancel(ctx))
	}

	c.repo.Close()

	c.tl.Info("Worker core stopped.")
}
