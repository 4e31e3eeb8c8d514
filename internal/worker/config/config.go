package config

import (
	"fmt"
	"strings"

	"web3-balance/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	ChainTypeEVM    = "evm"
	ChainTypeSolana = "solana"
)

// Config 定义整个配置的结构
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	API        APIConfig        `mapstructure:"api"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Moralis    MoralisConfig    `mapstructure:"moralis"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Chains     []ChainConfig    `mapstructure:"chains"`
}

// KafkaConfig Kafka 配置，brokers 为空则不启用
type KafkaConfig struct {
	Brokers       string `mapstructure:"brokers"`
	TopicSession  string `mapstructure:"topic_session"`
	TopicSnapshot string `mapstructure:"topic_snapshot"`
	GroupID       string `mapstructure:"group_id"`
}

// RedisConfig Redis 配置，address 为空则价格只走本地缓存
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DBPrice  int    `mapstructure:"db_price"`
}

// LogConfig Log 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"`
}

type WorkerConfig struct {
	WorkerNum int `mapstructure:"worker_num"`
}

type MonitorConfig struct {
	Enable         bool   `mapstructure:"enable"`
	PrometheusAddr string `mapstructure:"prometheus_addr"`
}

type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

const (
	OracleProviderHTTP    = "http"
	OracleProviderMoralis = "moralis"
)

// OracleConfig 价格服务配置，provider 为 http（自建价格服务）或 moralis
type OracleConfig struct {
	Provider        string `mapstructure:"provider"`
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"`
	RateLimit       int    `mapstructure:"rate_limit"` // 每分钟请求次数
	Timeout         int    `mapstructure:"timeout"`    // 秒
	CacheTTL        int    `mapstructure:"cache_ttl"`  // 秒，0 表示不缓存
	RedisPriceCache bool   `mapstructure:"redis_price_cache"`
}

type MoralisConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	GatewayURL string `mapstructure:"gateway_url"`
	APIKey     string `mapstructure:"api_key"`
	RateLimit  int    `mapstructure:"rate_limit"`
	Timeout    int    `mapstructure:"timeout"`
}

type AggregatorConfig struct {
	PriceConcurrency int `mapstructure:"price_concurrency"` // 0 表示不限
	RunTimeout       int `mapstructure:"run_timeout"`       // 秒
}

// ChainConfig 单条链的 RPC 配置
type ChainConfig struct {
	ChainID          uint64 `mapstructure:"chain_id"`
	Name             string `mapstructure:"name"`
	Type             string `mapstructure:"type"` // evm / solana
	RpcUrl           string `mapstructure:"rpc_url"`
	MulticallAddress string `mapstructure:"multicall_address"`
	WrappedNative    string `mapstructure:"wrapped_native"` // 原生币按包装币报价（moralis）
	Timeout          int    `mapstructure:"timeout"`        // 秒
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("worker.worker_num", 4)
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("oracle.provider", OracleProviderHTTP)
	v.SetDefault("oracle.rate_limit", 600)
	v.SetDefault("oracle.timeout", 10)
	v.SetDefault("oracle.cache_ttl", 30)
	v.SetDefault("moralis.base_url", "https://deep-index.moralis.io")
	v.SetDefault("moralis.gateway_url", "https://solana-gateway.moralis.io")
	v.SetDefault("moralis.rate_limit", 300)
	v.SetDefault("moralis.timeout", 10)
	v.SetDefault("aggregator.price_concurrency", 0)
	v.SetDefault("aggregator.run_timeout", 30)
}

// LoadConfig 读取指定路径的配置文件
func LoadConfig(path string) (Config, error) {
	var config Config

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("balance")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return config, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := decode(v, &config); err != nil {
		return config, err
	}
	return config, config.Validate()
}

func decode(v *viper.Viper, config *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           config,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate 链配置必须唯一且类型合法
func (c Config) Validate() error {
	switch c.Oracle.Provider {
	case OracleProviderHTTP, OracleProviderMoralis:
	default:
		return fmt.Errorf("oracle: unsupported provider %q", c.Oracle.Provider)
	}
	seen := make(map[uint64]struct{}, len(c.Chains))
	for _, chain := range c.Chains {
		if chain.ChainID == 0 {
			return fmt.Errorf("chain %q: chain_id is required", chain.Name)
		}
		if _, ok := seen[chain.ChainID]; ok {
			return fmt.Errorf("chain %d: duplicated", chain.ChainID)
		}
		seen[chain.ChainID] = struct{}{}
		if chain.RpcUrl == "" {
			return fmt.Errorf("chain %d: rpc_url is required", chain.ChainID)
		}
		switch chain.Type {
		case ChainTypeEVM, ChainTypeSolana:
		default:
			return fmt.Errorf("chain %d: unsupported type %q", chain.ChainID, chain.Type)
		}
	}
	return nil
}

func InitConfig() Config {
	config, err := LoadConfig("./config/config.worker.yaml")
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}
	return config
}

// WatchConfig 热加载，目前只有日志级别会实时生效
func WatchConfig(config *Config) {
	viper.SetConfigFile("./config/config.worker.yaml")
	if err := viper.ReadInConfig(); err != nil {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig, err := LoadConfig(e.Name)
		if err != nil {
			return
		}
		*config = newConfig
		logger.SetLogLevel(config.Log.Level)
	})
	viper.WatchConfig()
}
