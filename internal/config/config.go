package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/khanghh/appsso/params"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr    = ":3000"
	DefaultDBDriver      = "mysql"
	DefaultCacheBackend  = "redis"
	DefaultRedisPoolSize = 10
)

var (
	ErrMissingDatabaseDsn = errors.New("missing database dsn")
	ErrUnsupportedDriver  = errors.New("unsupported database driver")
	ErrUnsupportedCache   = errors.New("unsupported cache backend")
)

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // mysql or postgres
	Dsn             string        `mapstructure:"dsn"`
	Replicas        []string      `mapstructure:"replicas"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	ConnMaxIdleTime time.Duration `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
	AutoMigrate     bool          `mapstructure:"autoMigrate"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

type CacheConfig struct {
	Backend string      `mapstructure:"backend"` // redis or memory
	Redis   RedisConfig `mapstructure:"redis"`
}

// JWTConfig holds the raw signing settings. Lifetimes accept Go durations,
// plain seconds or a day suffix ("7d").
type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	RefreshSecret    string `mapstructure:"refreshSecret"`
	ExpiresIn        string `mapstructure:"expiresIn"`
	RefreshExpiresIn string `mapstructure:"refreshExpiresIn"`

	AccessLifetime  time.Duration `mapstructure:"-"`
	RefreshLifetime time.Duration `mapstructure:"-"`
}

type OAuthProviderConfig struct {
	ClientID     string   `mapstructure:"clientID"`
	ClientSecret string   `mapstructure:"clientSecret"`
	Scope        []string `mapstructure:"scope"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	TLS      bool   `mapstructure:"tls"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	CAFile   string `mapstructure:"caFile"`
	Insecure bool   `mapstructure:"insecureSkipVerify"`
}

type MailConfig struct {
	Backend string     `mapstructure:"backend"` // smtp, empty disables outgoing mail
	From    string     `mapstructure:"from"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

type RateLimitConfig struct {
	Window     time.Duration `mapstructure:"window"`
	Max        int           `mapstructure:"max"`
	AuthWindow time.Duration `mapstructure:"authWindow"`
	AuthMax    int           `mapstructure:"authMax"`
}

type Config struct {
	Debug           bool            `mapstructure:"debug"`
	SiteName        string          `mapstructure:"siteName"`
	BaseURL         string          `mapstructure:"baseURL"`
	FrontendURL     string          `mapstructure:"frontendURL"`
	TemplateDir     string          `mapstructure:"templateDir"`
	ListenAddr      string          `mapstructure:"listenAddr"`
	HealthCheckAddr string          `mapstructure:"healthCheckAddr"`
	AllowOrigins    []string        `mapstructure:"allowOrigins"`
	JWT             JWTConfig       `mapstructure:"jwt"`
	Cache           CacheConfig     `mapstructure:"cache"`
	Database        DatabaseConfig  `mapstructure:"database"`
	Mail            MailConfig      `mapstructure:"mail"`
	RateLimit       RateLimitConfig `mapstructure:"rateLimit"`
	AuthProviders   struct {
		OAuth map[string]OAuthProviderConfig `mapstructure:"oauth"`
	} `mapstructure:"authProviders"`
}

// ParseLifetime converts a lifetime setting into a duration. An empty value
// yields def.
func ParseLifetime(value string, def time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := cast.ToIntE(days)
		if err != nil {
			return 0, fmt.Errorf("invalid lifetime %q: %w", value, err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	if secs, err := cast.ToInt64E(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := cast.ToDurationE(value)
	if err != nil {
		return 0, fmt.Errorf("invalid lifetime %q: %w", value, err)
	}
	return d, nil
}

func (c *Config) Sanitize() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.HealthCheckAddr == "" {
		c.HealthCheckAddr = params.HealthCheckServerAddr
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDBDriver
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = DefaultCacheBackend
	}
	if c.Cache.Redis.PoolSize == 0 {
		c.Cache.Redis.PoolSize = DefaultRedisPoolSize
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = params.APIRateLimitWindow
	}
	if c.RateLimit.Max == 0 {
		c.RateLimit.Max = params.APIRateLimitMax
	}
	if c.RateLimit.AuthWindow == 0 {
		c.RateLimit.AuthWindow = params.AuthRateLimitWindow
	}
	if c.RateLimit.AuthMax == 0 {
		c.RateLimit.AuthMax = params.AuthRateLimitMax
	}
	c.JWT.Secret = strings.TrimSpace(c.JWT.Secret)
	c.JWT.RefreshSecret = strings.TrimSpace(c.JWT.RefreshSecret)

	var err error
	if c.JWT.AccessLifetime, err = ParseLifetime(c.JWT.ExpiresIn, params.DefaultAccessTokenLifetime); err != nil {
		return err
	}
	if c.JWT.RefreshLifetime, err = ParseLifetime(c.JWT.RefreshExpiresIn, params.DefaultRefreshTokenLifetime); err != nil {
		return err
	}

	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDriver, c.Database.Driver)
	}
	switch c.Cache.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedCache, c.Cache.Backend)
	}
	if c.Database.Dsn == "" {
		return ErrMissingDatabaseDsn
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// conventional names for the signing settings
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.refreshSecret", "JWT_REFRESH_SECRET")
	v.BindEnv("jwt.expiresIn", "JWT_EXPIRES_IN")
	v.BindEnv("jwt.refreshExpiresIn", "JWT_REFRESH_EXPIRES_IN")
	v.BindEnv("database.dsn", "DATABASE_URL")
	v.BindEnv("cache.redis.url", "REDIS_URL")
	return v
}

// LoadConfig reads the YAML file when it exists and overlays environment
// variables on top of it.
func LoadConfig(filename string) (*Config, error) {
	v := newViper()
	if _, err := os.Stat(filename); err == nil {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
