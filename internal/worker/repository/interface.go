package repository

import (
	"web3-balance/internal/worker/gateway"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

type RedisClient = *redis.Client
type MQClient = *kafka.Writer

type Repository interface {
	// GetPriceRDB 未配置 redis 时为 nil
	GetPriceRDB() RedisClient
	// GetMQ 未配置 kafka 时为 nil
	GetMQ() MQClient
	GetGateways() *gateway.Registry
	Close() error
}
