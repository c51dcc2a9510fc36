package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Cron      CronConfig      `mapstructure:"cron"`
	Gamma     GammaConfig     `mapstructure:"gamma"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Index     IndexConfig     `mapstructure:"index"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Filter    FilterConfig    `mapstructure:"filter"`
	Hedge     HedgeConfig     `mapstructure:"hedge"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
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
	// Driver is "sqlite" (local single-file cache, the default) or
	// "postgres" (shared deployments).
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type CronConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	MarketSync string `mapstructure:"market_sync"`
}

type GammaConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RequestsPerSec int           `mapstructure:"requests_per_sec"`
	MaxRetryWait   time.Duration `mapstructure:"max_retry_wait"`
}

type EmbeddingConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LLMConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type SyncConfig struct {
	PageLimit   int  `mapstructure:"page_limit"`
	MaxMarkets  int  `mapstructure:"max_markets"`
	UpdateIndex bool `mapstructure:"update_index"`
	Resume      bool `mapstructure:"resume"`
}

type IndexConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

type RetrievalConfig struct {
	NResults     int     `mapstructure:"n_results"`
	MinLiquidity float64 `mapstructure:"min_liquidity"`
}

type FilterConfig struct {
	BatchSize    int `mapstructure:"batch_size"`
	TopKPerBatch int `mapstructure:"top_k_per_batch"`
}

type HedgeConfig struct {
	DefaultBudget      float64 `mapstructure:"default_budget"`
	MaxMarketsInBundle int     `mapstructure:"max_markets_in_bundle"`
}

// MetricsConfig carries the heuristic constants of the risk engine. They are
// tuning values with no closed-form derivation; the defaults match the
// reference behavior and are deliberately configurable instead of re-derived.
type MetricsConfig struct {
	RiskScale            float64 `mapstructure:"risk_scale"`
	PortfolioRiskWeight  float64 `mapstructure:"portfolio_risk_weight"`
	IndividualRiskWeight float64 `mapstructure:"individual_risk_weight"`
	RiskFreeRate         float64 `mapstructure:"risk_free_rate"`
	LiquidityNorm        float64 `mapstructure:"liquidity_norm"`
	MaxDiversityBundles  int     `mapstructure:"max_diversity_bundles"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PH")
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
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "polyhedge.db")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("cron.enabled", false)
	v.SetDefault("cron.market_sync", "@every 6h")
	v.SetDefault("gamma.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("gamma.timeout", "30s")
	v.SetDefault("gamma.requests_per_sec", 5)
	v.SetDefault("gamma.max_retry_wait", "30s")
	v.SetDefault("embedding.base_url", "http://localhost:8001/v1")
	v.SetDefault("embedding.model", "all-MiniLM-L6-v2")
	v.SetDefault("embedding.timeout", "60s")
	v.SetDefault("llm.base_url", "https://api.cerebras.ai/v1")
	v.SetDefault("llm.model", "llama-3.3-70b")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("sync.page_limit", 500)
	v.SetDefault("sync.max_markets", 50000)
	v.SetDefault("sync.update_index", true)
	v.SetDefault("sync.resume", true)
	v.SetDefault("index.batch_size", 100)
	v.SetDefault("retrieval.n_results", 500)
	v.SetDefault("retrieval.min_liquidity", 100)
	v.SetDefault("filter.batch_size", 100)
	v.SetDefault("filter.top_k_per_batch", 10)
	v.SetDefault("hedge.default_budget", 100)
	v.SetDefault("hedge.max_markets_in_bundle", 8)
	v.SetDefault("metrics.risk_scale", 400)
	v.SetDefault("metrics.portfolio_risk_weight", 0.7)
	v.SetDefault("metrics.individual_risk_weight", 0.3)
	v.SetDefault("metrics.risk_free_rate", 0.05)
	v.SetDefault("metrics.liquidity_norm", 100000)
	v.SetDefault("metrics.max_diversity_bundles", 5)

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
