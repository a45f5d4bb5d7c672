package shared

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv      string
	AppVersion  string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	AgentURL     string
	AgentTimeout time.Duration

	DeployPlatform string
	DeployRegion   string

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	NominatimBase string
	NominatimRPS  float64
	GeocodeLang   string

	RateLimitRPS     float64
	RateLimitBurst   int
	TrustedProxyHops int

	WarmFile    string
	WarmDate    string
	WarmWorkers int
}

const (
	defaultAgentTimeoutMS = 30000
	defaultWarmWorkers    = 4
)

// ServerTimeout leaves room for the proxy to answer 503 itself before the
// whole-request timeout fires.
func (c Config) ServerTimeout() time.Duration { return c.AgentTimeout + 5*time.Second }

// CacheEnabled reports whether a redis address was configured.
func (c Config) CacheEnabled() bool { return c.RedisAddr != "" }

// Load reads .env (if present) and the process environment.
func Load() Config {
	_ = godotenv.Load() // missing .env is fine
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_VERSION", "1.0.0")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("AI_AGENT_URL", "http://localhost:8080")
	v.SetDefault("AI_AGENT_TIMEOUT", defaultAgentTimeoutMS)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL_SECONDS", 900)
	v.SetDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org")
	v.SetDefault("NOMINATIM_RPS", 1.0)
	v.SetDefault("GEOCODE_LANG", "ja")
	v.SetDefault("RATE_LIMIT_RPS", 0.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("TRUSTED_PROXY_HOPS", 0)
	v.SetDefault("WARM_WORKERS", defaultWarmWorkers)

	c := Config{
		AppEnv:           v.GetString("APP_ENV"),
		AppVersion:       v.GetString("APP_VERSION"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		HTTPAddr:         httpAddr(v),
		MetricsAddr:      v.GetString("METRICS_ADDR"),
		AgentURL:         strings.TrimRight(v.GetString("AI_AGENT_URL"), "/"),
		DeployPlatform:   v.GetString("DEPLOY_PLATFORM"),
		DeployRegion:     v.GetString("DEPLOY_REGION"),
		RedisAddr:        v.GetString("REDIS_ADDR"),
		RedisDB:          v.GetInt("REDIS_DB"),
		RedisPass:        v.GetString("REDIS_PASSWORD"),
		CacheTTL:         time.Duration(v.GetInt("CACHE_TTL_SECONDS")) * time.Second,
		NominatimBase:    v.GetString("NOMINATIM_BASE_URL"),
		NominatimRPS:     v.GetFloat64("NOMINATIM_RPS"),
		GeocodeLang:      v.GetString("GEOCODE_LANG"),
		RateLimitRPS:     v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:   v.GetInt("RATE_LIMIT_BURST"),
		TrustedProxyHops: v.GetInt("TRUSTED_PROXY_HOPS"),
		WarmFile:         v.GetString("WARM_LOCATIONS_FILE"),
		WarmDate:         v.GetString("WARM_DATE"),
		WarmWorkers:      v.GetInt("WARM_WORKERS"),
	}

	ms := v.GetInt("AI_AGENT_TIMEOUT")
	if ms <= 0 {
		log.Warn().Str("value", v.GetString("AI_AGENT_TIMEOUT")).Msg("AI_AGENT_TIMEOUT invalid, using default")
		ms = defaultAgentTimeoutMS
	}
	c.AgentTimeout = time.Duration(ms) * time.Millisecond

	if c.WarmWorkers < 1 {
		c.WarmWorkers = defaultWarmWorkers
	}
	if c.NominatimRPS <= 0 {
		c.NominatimRPS = 1
	}
	return c
}

// HTTP_ADDR wins; otherwise PORT as set by most PaaS runtimes; otherwise :3000.
func httpAddr(v *viper.Viper) string {
	if a := v.GetString("HTTP_ADDR"); a != "" {
		return a
	}
	if p := v.GetString("PORT"); p != "" {
		return ":" + p
	}
	return ":3000"
}
