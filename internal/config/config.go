// Package config loads tablegate's settings with viper: defaults, then an
// optional YAML file, then TABLEGATE_* environment variables
// (TABLEGATE_DATABASE_DSN sets database.dsn).
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/koustreak/tablegate/internal/auth"
	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/docstore"
	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/logger"
	"github.com/koustreak/tablegate/internal/server"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "TABLEGATE"

// Config is the complete configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Docstore DocstoreConfig `mapstructure:"docstore"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Schema   SchemaConfig   `mapstructure:"schema"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	StaticDir       string        `mapstructure:"static_dir"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TrustProxy      bool          `mapstructure:"trust_proxy"`
}

type DatabaseConfig struct {
	Dialect         string        `mapstructure:"dialect"`
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Schema          string        `mapstructure:"schema"`
	MaxConns        int           `mapstructure:"max_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	LoginTimeout    time.Duration `mapstructure:"login_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	MaxPageSize     int           `mapstructure:"max_page_size"`
}

type AuthConfig struct {
	UsersFile       string        `mapstructure:"users_file"`
	PolicyFile      string        `mapstructure:"policy_file"`
	SessionSecret   string        `mapstructure:"session_secret"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	CookieName      string        `mapstructure:"cookie_name"`
	CookieSecure    bool          `mapstructure:"cookie_secure"`
	SuccessRedirect string        `mapstructure:"success_redirect"`
	LoginPerMinute  int           `mapstructure:"login_per_minute"`
	LoginBurst      int           `mapstructure:"login_burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DocstoreConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	AccessKey string        `mapstructure:"access_key"`
	SecretKey string        `mapstructure:"secret_key"`
	UseSSL    bool          `mapstructure:"use_ssl"`
	Region    string        `mapstructure:"region"`
	Bucket    string        `mapstructure:"bucket"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type SchemaConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

// defaults registers every key, which also lets AutomaticEnv find the
// environment override for it during Unmarshal.
func defaults(v *viper.Viper) {
	db := database.DefaultConfig("")
	au := auth.DefaultConfig()

	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("database.dialect", db.Dialect)
	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.schema", "")
	v.SetDefault("database.max_conns", db.MaxConns)
	v.SetDefault("database.max_idle_conns", db.MaxIdleConns)
	v.SetDefault("database.max_conn_lifetime", db.MaxConnLifetime)
	v.SetDefault("database.max_conn_idle_time", db.MaxConnIdleTime)
	v.SetDefault("database.connect_timeout", db.ConnectTimeout)
	v.SetDefault("database.login_timeout", db.LoginTimeout)
	v.SetDefault("database.query_timeout", db.QueryTimeout)
	v.SetDefault("database.max_page_size", db.MaxPageSize)

	v.SetDefault("auth.users_file", "users.yaml")
	v.SetDefault("auth.policy_file", "")
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_ttl", au.SessionTTL)
	v.SetDefault("auth.cookie_name", au.CookieName)
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.success_redirect", au.SuccessRedirect)
	v.SetDefault("auth.login_per_minute", au.LoginPerMinute)
	v.SetDefault("auth.login_burst", au.LoginBurst)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("docstore.endpoint", "")
	v.SetDefault("docstore.access_key", "")
	v.SetDefault("docstore.secret_key", "")
	v.SetDefault("docstore.use_ssl", false)
	v.SetDefault("docstore.region", "")
	v.SetDefault("docstore.bucket", "")
	v.SetDefault("docstore.timeout", 5*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("schema.cache_size", 256)
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return nil, errs.Wrap(errs.ErrKindInvalidInput, "config file not found: "+path, err)
			}
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid config file "+path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to unmarshal config", err)
	}
	return &cfg, nil
}

// Validate reports the first unusable setting. It checks what every
// command needs; the auth section is checked by ValidateServe.
func (c *Config) Validate() error {
	if err := c.DatabaseConfig().Validate(); err != nil {
		return err
	}
	if c.Schema.CacheSize <= 0 {
		return errs.New(errs.ErrKindInvalidInput, "schema cache_size must be > 0")
	}
	return nil
}

// ValidateServe additionally checks the settings the HTTP server needs.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch {
	case c.Server.Addr == "":
		return errs.New(errs.ErrKindInvalidInput, "server addr is required")
	case c.Auth.UsersFile == "":
		return errs.New(errs.ErrKindInvalidInput, "auth users_file is required")
	case len(c.Auth.SessionSecret) < 16:
		return errs.New(errs.ErrKindInvalidInput, "auth session_secret must be at least 16 characters")
	case c.Auth.SessionTTL <= 0:
		return errs.New(errs.ErrKindInvalidInput, "auth session_ttl must be > 0")
	}
	return nil
}

// DatabaseConfig converts the database section.
func (c *Config) DatabaseConfig() *database.Config {
	d := c.Database
	return &database.Config{
		Dialect:         d.Dialect,
		DriverName:      d.Driver,
		DSN:             d.DSN,
		Schema:          d.Schema,
		MaxConns:        d.MaxConns,
		MaxIdleConns:    d.MaxIdleConns,
		MaxConnLifetime: d.MaxConnLifetime,
		MaxConnIdleTime: d.MaxConnIdleTime,
		ConnectTimeout:  d.ConnectTimeout,
		LoginTimeout:    d.LoginTimeout,
		QueryTimeout:    d.QueryTimeout,
		MaxPageSize:     d.MaxPageSize,
	}
}

// AuthConfig converts the auth section.
func (c *Config) AuthConfig() *auth.Config {
	a := c.Auth
	return &auth.Config{
		UsersFile:       a.UsersFile,
		PolicyFile:      a.PolicyFile,
		SessionSecret:   a.SessionSecret,
		SessionTTL:      a.SessionTTL,
		CookieName:      a.CookieName,
		CookieSecure:    a.CookieSecure,
		SuccessRedirect: a.SuccessRedirect,
		LoginPerMinute:  a.LoginPerMinute,
		LoginBurst:      a.LoginBurst,
	}
}

// LoggerConfig converts the log section.
func (c *Config) LoggerConfig() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	return cfg
}

// DocstoreConfig converts the docstore section.
func (c *Config) DocstoreConfig() *docstore.Config {
	d := c.Docstore
	return &docstore.Config{
		Endpoint:  d.Endpoint,
		AccessKey: d.AccessKey,
		SecretKey: d.SecretKey,
		UseSSL:    d.UseSSL,
		Region:    d.Region,
		Bucket:    d.Bucket,
		Timeout:   d.Timeout,
	}
}

// ServerConfig converts the server and metrics sections. version is
// reported in the API document.
func (c *Config) ServerConfig(version string) *server.Config {
	s := c.Server
	cfg := &server.Config{
		Addr:            s.Addr,
		StaticDir:       s.StaticDir,
		Version:         version,
		ReadTimeout:     s.ReadTimeout,
		WriteTimeout:    s.WriteTimeout,
		IdleTimeout:     s.IdleTimeout,
		ShutdownTimeout: s.ShutdownTimeout,
		TrustProxy:      s.TrustProxy,
	}
	if c.Metrics.Enabled {
		cfg.MetricsPath = c.Metrics.Path
	}
	return cfg
}
