package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds settings for every bmrk command. The data service (serve,
// migrate) reads DB/OIDC/token settings; the agent and popup read the client
// settings (data service URL, shared storage, bus, cache).
type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		Driver string
		DSN    string
	}
	OIDC struct {
		Issuer       string
		ClientID     string
		ClientSecret string
		RedirectURL  string
	}
	Auth struct {
		// RedirectTo is where a completed sign-in lands with the issued
		// tokens in the URL fragment (the agent's auth origin).
		RedirectTo string
	}
	SessionLifetime time.Duration
	TokenLifetime   time.Duration
	RefreshLifetime time.Duration
	InsecureCookies bool

	Agent struct {
		Addr       string
		BadgeClear time.Duration
		Manifest   string
	}
	DataService struct {
		URL     string
		Timeout time.Duration
	}
	KV struct {
		Driver string
		DSN    string
	}
	Bus struct {
		Driver string
	}
	Redis struct {
		Addr     string
		User     string
		Password string
		DB       int
	}
	Cache struct {
		Freshness time.Duration
	}
	Log struct {
		Level  string
		Pretty bool
		File   string
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("BMRK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigName("bmrk")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "bmrk"))
	}
	_ = v.ReadInConfig() // optional config file

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("session.lifetime", "720h")
	v.SetDefault("token.lifetime", "1h")
	v.SetDefault("refresh.lifetime", "720h")
	v.SetDefault("agent.addr", "127.0.0.1:7171")
	v.SetDefault("agent.badge_clear", "3s")
	v.SetDefault("auth.redirect_to", "http://127.0.0.1:7171/auth/callback")
	v.SetDefault("dataservice.timeout", "10s")
	v.SetDefault("kv.driver", "sqlite3")
	v.SetDefault("kv.dsn", defaultStateDSN())
	v.SetDefault("bus.driver", "sql")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("cache.freshness", "2h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
	return v
}

func defaultStateDSN() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "file:bmrk-state.db"
	}
	return "file:" + filepath.Join(dir, "bmrk", "state.db")
}

// Load reads the full configuration for the data service from environment
// (BMRK_ prefix) and an optional bmrk.yaml.
func Load() (*Config, error) {
	cfg, err := read(newViper())
	if err != nil {
		return nil, err
	}

	if cfg.DB.Driver == "" {
		return nil, fmt.Errorf("BMRK_DB_DRIVER is required (sqlite3, mysql, postgres)")
	}
	if cfg.DB.DSN == "" {
		return nil, fmt.Errorf("BMRK_DB_DSN is required")
	}
	if cfg.OIDC.Issuer == "" {
		return nil, fmt.Errorf("BMRK_OIDC_ISSUER is required")
	}
	if cfg.OIDC.ClientID == "" {
		return nil, fmt.Errorf("BMRK_OIDC_CLIENT_ID is required")
	}
	if cfg.OIDC.ClientSecret == "" {
		return nil, fmt.Errorf("BMRK_OIDC_CLIENT_SECRET is required")
	}
	if cfg.OIDC.RedirectURL == "" {
		return nil, fmt.Errorf("BMRK_OIDC_REDIRECT_URL is required")
	}

	return cfg, nil
}

// LoadDB reads configuration for commands that only need the database.
func LoadDB() (*Config, error) {
	cfg, err := read(newViper())
	if err != nil {
		return nil, err
	}
	if cfg.DB.Driver == "" {
		return nil, fmt.Errorf("BMRK_DB_DRIVER is required (sqlite3, mysql, postgres)")
	}
	if cfg.DB.DSN == "" {
		return nil, fmt.Errorf("BMRK_DB_DSN is required")
	}
	return cfg, nil
}

// LoadClient reads configuration for the agent and popup. When local is true
// the data service is opened in-process from db.* instead of over HTTP.
func LoadClient(local bool) (*Config, error) {
	cfg, err := read(newViper())
	if err != nil {
		return nil, err
	}

	if local {
		if cfg.DB.Driver == "" || cfg.DB.DSN == "" {
			return nil, fmt.Errorf("BMRK_DB_DRIVER and BMRK_DB_DSN are required in local mode")
		}
	} else if cfg.DataService.URL == "" {
		return nil, fmt.Errorf("BMRK_DATASERVICE_URL is required")
	}

	switch cfg.KV.Driver {
	case "sqlite3", "mysql", "postgres", "redis", "memory":
	default:
		return nil, fmt.Errorf("unsupported BMRK_KV_DRIVER %q: must be sqlite3, mysql, postgres, redis, or memory", cfg.KV.Driver)
	}
	// The agent and every popup run as separate processes, so the bus must
	// cross process boundaries.
	switch cfg.Bus.Driver {
	case "sql":
		if cfg.KV.Driver == "redis" || cfg.KV.Driver == "memory" {
			return nil, fmt.Errorf("BMRK_BUS_DRIVER=sql needs a SQL state store, got BMRK_KV_DRIVER=%s", cfg.KV.Driver)
		}
	case "redis":
	default:
		return nil, fmt.Errorf("unsupported BMRK_BUS_DRIVER %q: must be sql or redis", cfg.Bus.Driver)
	}
	if cfg.Cache.Freshness <= 0 {
		return nil, fmt.Errorf("BMRK_CACHE_FRESHNESS must be positive, got %s", cfg.Cache.Freshness)
	}

	return cfg, nil
}

func read(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Addr = v.GetString("http.addr")
	cfg.DB.Driver = v.GetString("db.driver")
	cfg.DB.DSN = v.GetString("db.dsn")
	cfg.OIDC.Issuer = v.GetString("oidc.issuer")
	cfg.OIDC.ClientID = v.GetString("oidc.client_id")
	cfg.OIDC.ClientSecret = v.GetString("oidc.client_secret")
	cfg.OIDC.RedirectURL = v.GetString("oidc.redirect_url")
	cfg.Auth.RedirectTo = v.GetString("auth.redirect_to")
	cfg.InsecureCookies = v.GetBool("insecure_cookies")

	cfg.Agent.Addr = v.GetString("agent.addr")
	cfg.Agent.Manifest = v.GetString("agent.manifest")
	cfg.DataService.URL = strings.TrimRight(v.GetString("dataservice.url"), "/")
	cfg.KV.Driver = v.GetString("kv.driver")
	cfg.KV.DSN = v.GetString("kv.dsn")
	cfg.Bus.Driver = v.GetString("bus.driver")
	cfg.Redis.Addr = v.GetString("redis.addr")
	cfg.Redis.User = v.GetString("redis.user")
	cfg.Redis.Password = v.GetString("redis.password")
	cfg.Redis.DB = v.GetInt("redis.db")
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Pretty = v.GetBool("log.pretty")
	cfg.Log.File = v.GetString("log.file")

	durations := []struct {
		key string
		env string
		dst *time.Duration
	}{
		{"session.lifetime", "BMRK_SESSION_LIFETIME", &cfg.SessionLifetime},
		{"token.lifetime", "BMRK_TOKEN_LIFETIME", &cfg.TokenLifetime},
		{"refresh.lifetime", "BMRK_REFRESH_LIFETIME", &cfg.RefreshLifetime},
		{"agent.badge_clear", "BMRK_AGENT_BADGE_CLEAR", &cfg.Agent.BadgeClear},
		{"dataservice.timeout", "BMRK_DATASERVICE_TIMEOUT", &cfg.DataService.Timeout},
		{"cache.freshness", "BMRK_CACHE_FRESHNESS", &cfg.Cache.Freshness},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.env, err)
		}
		*d.dst = parsed
	}

	return cfg, nil
}
