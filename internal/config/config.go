package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Cron     CronConfig     `mapstructure:"cron"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Market   MarketConfig   `mapstructure:"market"`
	Solana   SolanaConfig   `mapstructure:"solana"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Sniper   SniperConfig   `mapstructure:"sniper"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Volume   VolumeConfig   `mapstructure:"volume"`
	Notify   NotifyConfig   `mapstructure:"notify"`
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

type CronConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	TargetEviction  string `mapstructure:"target_eviction"`
	SignalRetention string `mapstructure:"signal_retention"`
	PerformanceLog  string `mapstructure:"performance_log"`
}

type CacheConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type MarketConfig struct {
	DexScreenerURL  string        `mapstructure:"dexscreener_url"`
	PumpFunURL      string        `mapstructure:"pumpfun_url"`
	PumpPortalWSURL string        `mapstructure:"pumpportal_ws_url"`
	StreamEnabled   bool          `mapstructure:"stream_enabled"`
	SearchQuery     string        `mapstructure:"search_query"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RatePerSec      float64       `mapstructure:"rate_per_sec"`
	Burst           int           `mapstructure:"burst"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	RecentLimit     int           `mapstructure:"recent_limit"`
}

type SolanaConfig struct {
	RPCURL     string `mapstructure:"rpc_url"`
	Commitment string `mapstructure:"commitment"`
	PrivateKey string `mapstructure:"private_key"`
}

type ExecutorConfig struct {
	Mode       string        `mapstructure:"mode"`
	JupiterURL string        `mapstructure:"jupiter_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type EngineConfig struct {
	ScanInterval       time.Duration   `mapstructure:"scan_interval"`
	MonitorInterval    time.Duration   `mapstructure:"monitor_interval"`
	VolumeInterval     time.Duration   `mapstructure:"volume_interval"`
	RankerCapacity     int             `mapstructure:"ranker_capacity"`
	TargetTTL          time.Duration   `mapstructure:"target_ttl"`
	CallTimeout        time.Duration   `mapstructure:"call_timeout"`
	MonitorConcurrency int             `mapstructure:"monitor_concurrency"`
	Autostart          AutostartConfig `mapstructure:"autostart"`
}

type AutostartConfig struct {
	Scan    bool `mapstructure:"scan"`
	Monitor bool `mapstructure:"monitor"`
	Volume  bool `mapstructure:"volume"`
}

type SniperConfig struct {
	BuyAmount         float64       `mapstructure:"buy_amount"`
	TakeProfitPct     float64       `mapstructure:"take_profit_pct"`
	StopLossPct       float64       `mapstructure:"stop_loss_pct"`
	MaxPositions      int           `mapstructure:"max_positions"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
	DiscoveryFloor    float64       `mapstructure:"discovery_floor"`
	ExecutionFloor    float64       `mapstructure:"execution_floor"`
	MaxSlippage       float64       `mapstructure:"max_slippage"`
	MinLiquidity      float64       `mapstructure:"min_liquidity"`
	ReputableCreators []string      `mapstructure:"reputable_creators"`
}

type WalletConfig struct {
	FundPacing   time.Duration `mapstructure:"fund_pacing"`
	MinJitter    time.Duration `mapstructure:"min_jitter"`
	MaxJitter    time.Duration `mapstructure:"max_jitter"`
	MinRemaining float64       `mapstructure:"min_remaining"`
}

type VolumeConfig struct {
	// Batch names the wallet batch used for multi-account volume trades. Empty trades from the main account.
	Batch string `mapstructure:"batch"`
}

type NotifyConfig struct {
	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID int64  `mapstructure:"telegram_chat_id"`
	PaaSBaseURL    string `mapstructure:"paas_base_url"`
	PaaSAPIKey     string `mapstructure:"paas_api_key"`
	PaaSAgent      string `mapstructure:"paas_agent"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SNIPER")
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
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.target_eviction", "@every 1m")
	v.SetDefault("cron.signal_retention", "@every 10m")
	v.SetDefault("cron.performance_log", "@every 5m")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "127.0.0.1:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("market.dexscreener_url", "https://api.dexscreener.com")
	v.SetDefault("market.pumpfun_url", "https://frontend-api-v3.pump.fun")
	v.SetDefault("market.pumpportal_ws_url", "wss://pumpportal.fun/api/data")
	v.SetDefault("market.stream_enabled", false)
	v.SetDefault("market.search_query", "SOL")
	v.SetDefault("market.timeout", "8s")
	v.SetDefault("market.rate_per_sec", 5)
	v.SetDefault("market.burst", 10)
	v.SetDefault("market.cache_ttl", "10m")
	v.SetDefault("market.recent_limit", 20)

	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.commitment", "confirmed")
	v.SetDefault("solana.private_key", "")
	v.SetDefault("executor.mode", "paper")
	v.SetDefault("executor.jupiter_url", "https://quote-api.jup.ag")
	v.SetDefault("executor.timeout", "15s")

	v.SetDefault("engine.scan_interval", "2s")
	v.SetDefault("engine.monitor_interval", "3s")
	v.SetDefault("engine.volume_interval", "30s")
	v.SetDefault("engine.ranker_capacity", 20)
	v.SetDefault("engine.target_ttl", "30m")
	v.SetDefault("engine.call_timeout", "5s")
	v.SetDefault("engine.monitor_concurrency", 8)
	v.SetDefault("engine.autostart.scan", false)
	v.SetDefault("engine.autostart.monitor", true)
	v.SetDefault("engine.autostart.volume", false)

	v.SetDefault("sniper.buy_amount", 0.1)
	v.SetDefault("sniper.take_profit_pct", 50)
	v.SetDefault("sniper.stop_loss_pct", 20)
	v.SetDefault("sniper.max_positions", 5)
	v.SetDefault("sniper.cooldown", "5s")
	v.SetDefault("sniper.discovery_floor", 30)
	v.SetDefault("sniper.execution_floor", 70)
	v.SetDefault("sniper.max_slippage", 3.0)
	v.SetDefault("sniper.min_liquidity", 10000)
	v.SetDefault("sniper.reputable_creators", []string{})

	v.SetDefault("wallet.fund_pacing", "1s")
	v.SetDefault("wallet.min_jitter", "1s")
	v.SetDefault("wallet.max_jitter", "3s")
	v.SetDefault("wallet.min_remaining", 0.001)
	v.SetDefault("volume.batch", "")

	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.telegram_chat_id", 0)
	v.SetDefault("notify.paas_base_url", "")
	v.SetDefault("notify.paas_api_key", "")
	v.SetDefault("notify.paas_agent", "solsniper")

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
