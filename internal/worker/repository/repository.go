package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"web3-balance/internal/worker/config"
	"web3-balance/internal/worker/gateway"
	"web3-balance/pkg/evm_client"
	"web3-balance/pkg/solana_client"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var once sync.Once
var r *repositoryImpl

func New(cfg config.Config, logger *zap.Logger) Repository {
	once.Do(func() {
		r = &repositoryImpl{
			cfg:    cfg,
			logger: logger,
		}
		r.init()
	})
	return r
}

type repositoryImpl struct {
	cfg        config.Config
	logger     *zap.Logger
	priceRdb   *redis.Client
	mq         *kafka.Writer
	gateways   *gateway.Registry
	evmClients []*evm_client.Client
}

func (r *repositoryImpl) init() {
	// 初始化 Price RDB（可选）
	if strings.TrimSpace(r.cfg.Redis.Address) != "" {
		r.priceRdb = redis.NewClient(&redis.Options{
			Addr:     r.cfg.Redis.Address,
			Password: r.cfg.Redis.Password,
			DB:       r.cfg.Redis.DBPrice,
			PoolSize: 20,
		})
		if err := r.priceRdb.Ping(context.Background()).Err(); err != nil {
			r.logger.Warn("failed to connect to redis, continue", zap.Error(err))
		}
	} else {
		r.logger.Info("redis address empty, price cache is local only")
	}

	if strings.TrimSpace(r.cfg.Kafka.Brokers) != "" {
		r.mq = NewKafkaWriter(r.cfg.Kafka)
	}

	var err error
	r.gateways, r.evmClients, err = BuildGateways(context.Background(), r.cfg.Chains, r.logger)
	if err != nil {
		panic(err)
	}
}

// NewKafkaWriter 快照事件 writer
func NewKafkaWriter(conf config.KafkaConfig) *kafka.Writer {
	brokers := strings.Split(conf.Brokers, ",")
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchSize:    1000,
		BatchBytes:   1024 * 1024, // 1MB
		Async:        true,
		RequiredAcks: kafka.RequireNone,
		Compression:  kafka.Snappy,
		MaxAttempts:  5,
		WriteTimeout: 500 * time.Millisecond,
	}
}

// BuildGateways 按链配置初始化 rpc client 并注册到 Registry
func BuildGateways(ctx context.Context, chains []config.ChainConfig, logger *zap.Logger) (*gateway.Registry, []*evm_client.Client, error) {
	registry := gateway.NewRegistry()
	var evmClients []*evm_client.Client

	for _, chain := range chains {
		timeout := time.Duration(chain.Timeout) * time.Second
		tl := logger.With(zap.Uint64("chain_id", chain.ChainID), zap.String("chain", chain.Name))

		switch chain.Type {
		case config.ChainTypeEVM:
			client, err := evm_client.Dial(ctx, chain.RpcUrl, timeout)
			if err != nil {
				for _, c := range evmClients {
					c.Close()
				}
				return nil, nil, err
			}
			evmClients = append(evmClients, client)
			registry.Register(chain.ChainID, gateway.NewEVMGateway(chain.ChainID, client.RPC, client.Eth, chain.MulticallAddress, tl))
		case config.ChainTypeSolana:
			client := solana_client.InitWithTimeout(chain.RpcUrl, timeout)
			registry.Register(chain.ChainID, gateway.NewSolanaGateway(chain.ChainID, client, tl))
		default:
			return nil, nil, fmt.Errorf("chain %d: unsupported type %q", chain.ChainID, chain.Type)
		}
		tl.Info("chain gateway registered", zap.String("type", chain.Type))
	}
	return registry, evmClients, nil
}

func (r *repositoryImpl) GetPriceRDB() *redis.Client {
	return r.priceRdb
}

func (r *repositoryImpl) GetMQ() MQClient {
	return r.mq
}

func (r *repositoryImpl) GetGateways() *gateway.Registry {
	return r.gateways
}

func (r *repositoryImpl) Close() error {
	if r.priceRdb != nil {
		r.priceRdb.Close()
	}
	if r.mq != nil {
		r.mq.Close()
	}
	for _, c := range r.evmClients {
		c.Close()
	}
	return nil
}
