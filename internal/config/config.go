package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	DB           DBConfig           `mapstructure:"db"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Cron         CronConfig         `mapstructure:"cron"`
	Chain        ChainConfig        `mapstructure:"chain"`
	Signer       SignerConfig       `mapstructure:"signer"`
	Events       EventsConfig       `mapstructure:"events"`
	AutoWithdraw AutoWithdrawConfig `mapstructure:"auto_withdraw"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type CronConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	AutoWithdraw string `mapstructure:"auto_withdraw"`
	StateRefresh string `mapstructure:"state_refresh"`
}

type ChainConfig struct {
	RPCURL     string                    `mapstructure:"rpc_url"`
	Timeout    time.Duration             `mapstructure:"timeout"`
	PackageID  string                    `mapstructure:"package_id"`
	Module     string                    `mapstructure:"module"`
	AdminCapID string                    `mapstructure:"admin_cap_id"`
	GasBudget  uint64                    `mapstructure:"gas_budget"`
	Platforms  map[string]PlatformConfig `mapstructure:"platforms"`
}

type PlatformConfig struct {
	ObjectID string `mapstructure:"object_id"`
	CoinType string `mapstructure:"coin_type"`
}

type SignerConfig struct {
	// OperatorKey accepts a bech32 suiprivkey string, 0x-prefixed hex, or
	// base64. It is only ever read from the environment, never echoed back.
	OperatorKey         string  `mapstructure:"operator_key"`
	MaxPayoutMultiplier float64 `mapstructure:"max_payout_multiplier"`
}

type EventsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AutoWithdrawConfig struct {
	Enabled      bool              `mapstructure:"enabled"`
	Currencies   []string          `mapstructure:"currencies"`
	SafetyFactor float64           `mapstructure:"safety_factor"`
	MinThreshold map[string]string `mapstructure:"min_threshold"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", "30s")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.auto_withdraw", "@every 10m")
	v.SetDefault("cron.state_refresh", "@every 1m")
	v.SetDefault("chain.rpc_url", "https://fullnode.testnet.sui.io:443")
	v.SetDefault("chain.timeout", "15s")
	v.SetDefault("chain.module", "betting")
	v.SetDefault("chain.gas_budget", 100000000)
	v.SetDefault("signer.max_payout_multiplier", 100)
	v.SetDefault("events.base_url", "")
	v.SetDefault("events.timeout", "10s")
	v.SetDefault("auto_withdraw.enabled", true)
	v.SetDefault("auto_withdraw.currencies", []string{"SUI", "USDC"})
	v.SetDefault("auto_withdraw.safety_factor", 0.95)
	v.SetDefault("auto_withdraw.min_threshold", map[string]string{
		"sui":  "0.001",
		"usdc": "0.01",
	})

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
