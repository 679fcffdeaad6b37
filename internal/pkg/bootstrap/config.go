// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration 是 time.Duration 的 YAML 包装，支持 "100ms"/"2s" 这样的写法。
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config 汇总了服务运行所需的全部配置。
// App 是业务侧配置，Infra 是基础设施连接信息。
type Config struct {
	App struct {
		HTTPPort    int      `yaml:"httpPort"`
		SyncTimeout Duration `yaml:"syncTimeout"` // 同步网关对调用方可见的超时

		Worker struct {
			Count        int      `yaml:"count"`
			MaxAttempts  int      `yaml:"maxAttempts"`
			RetryBackoff Duration `yaml:"retryBackoff"`
		} `yaml:"worker"`

		// Policy.Expression 是一条 CEL 表达式，作为下单前的准入规则。
		// 例如: "quantity > 0 && quantity <= 5"
		Policy struct {
			Expression string `yaml:"expression"`
		} `yaml:"policy"`

		FeatureFlags struct {
			EnableRedisLedger bool `yaml:"enableRedisLedger"`
			EnablePushGateway bool `yaml:"enablePushGateway"`
		} `yaml:"featureFlags"`
	} `yaml:"app"`

	Infra struct {
		Kafka struct {
			Brokers         []string `yaml:"brokers"`
			IntentTopic     string   `yaml:"intentTopic"`
			OutcomeTopic    string   `yaml:"outcomeTopic"`
			DeadLetterTopic string   `yaml:"deadLetterTopic"`
			GroupID         string   `yaml:"groupId"`
		} `yaml:"kafka"`

		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`

		Mysql struct {
			DSN string `yaml:"dsn"`
		} `yaml:"mysql"`

		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`

		Zookeeper struct {
			Servers []string `yaml:"servers"`
		} `yaml:"zookeeper"`

		Nacos struct {
			Enabled     bool   `yaml:"enabled"`
			ServerAddrs string `yaml:"serverAddrs"`
			Namespace   string `yaml:"namespace"`
			Group       string `yaml:"group"`
		} `yaml:"nacos"`
	} `yaml:"infra"`
}

var currentConfig atomic.Value // *Config

// Init 加载配置文件并设置为全局配置。
// 配置文件路径由 CONFIG_PATH 环境变量指定，缺省为 configs/config.yaml。
// 文件不存在时退回到内置默认值，保证本地开发可以零配置启动。
func Init() {
	cfg := defaultConfig()

	path := getEnv("CONFIG_PATH", "configs/config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			panic(fmt.Sprintf("FATAL: failed to parse config file %s: %v", path, err))
		}
	}

	applyEnvOverrides(cfg)
	currentConfig.Store(cfg)
}

// GetCurrentConfig 返回当前生效的配置。调用前必须先执行 Init。
func GetCurrentConfig() *Config {
	cfg, ok := currentConfig.Load().(*Config)
	if !ok {
		panic("bootstrap: config accessed before Init")
	}
	return cfg
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.App.HTTPPort = 8080
	cfg.App.SyncTimeout = Duration(2 * time.Second)
	cfg.App.Worker.Count = 4
	cfg.App.Worker.MaxAttempts = 3
	cfg.App.Worker.RetryBackoff = Duration(100 * time.Millisecond)
	cfg.App.Policy.Expression = "quantity > 0 && quantity <= 10"
	cfg.Infra.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Infra.Kafka.IntentTopic = "purchase-intent-topic"
	cfg.Infra.Kafka.OutcomeTopic = "reservation-outcome-topic"
	cfg.Infra.Kafka.DeadLetterTopic = "purchase-intent-topic.DLT"
	cfg.Infra.Kafka.GroupID = "flashsale-workers"
	cfg.Infra.Redis.Addr = "localhost:6379"
	cfg.Infra.Mysql.DSN = "root:root@tcp(localhost:3306)/pulsecart?charset=utf8mb4&parseTime=True"
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Infra.Zookeeper.Servers = []string{"localhost:2181"}
	cfg.Infra.Nacos.ServerAddrs = "localhost:8848"
	cfg.Infra.Nacos.Group = "DEFAULT_GROUP"
	return cfg
}

// applyEnvOverrides 允许用环境变量覆盖最常变的连接地址，
// 方便容器环境下不用改配置文件就能切换依赖。
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Infra.Kafka.Brokers = []string{v}
	}
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok {
		cfg.Infra.Redis.Addr = v
	}
	if v, ok := os.LookupEnv("MYSQL_DSN"); ok {
		cfg.Infra.Mysql.DSN = v
	}
	if v, ok := os.LookupEnv("JAEGER_ENDPOINT"); ok {
		cfg.Infra.Jaeger.Endpoint = v
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
