package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env     string        `mapstructure:"env"` // prod, dev, local
	Server  ServerConfig  `mapstructure:"server"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	LogDB   DBConfig      `mapstructure:"log_db"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type ProxyConfig struct {
	Timeout               time.Duration `mapstructure:"timeout"`
	MaxIdleConns          int           `mapstructure:"max_idle_conns"`
	IdleConnTimeout       time.Duration `mapstructure:"idle_conn_timeout"`
	TLSTimeout            time.Duration `mapstructure:"tls_timeout"`
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout"`
	ExpectContinueTimeout time.Duration `mapstructure:"expect_continue_timeout"`
	MaxConnsPerHost       int           `mapstructure:"max_conns_per_host"`
}

type AuthConfig struct {
	// Salt is prepended to the Authorization header value before hashing.
	// Process configuration only, never request-derived.
	Salt string `mapstructure:"salt"`
	// TrustedProxies is the number of proxy hops whose X-Forwarded-For
	// entries are trusted when resolving the client IP.
	TrustedProxies int `mapstructure:"trusted_proxies"`
	// LookupWorkers bounds concurrent store lookups.
	LookupWorkers int `mapstructure:"lookup_workers"`
}

type AuditConfig struct {
	Workers       int           `mapstructure:"workers"`
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DBConfig struct {
	Type     string `mapstructure:"type"` // postgres, oracle, mongodb, couchbase
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Pool     struct {
		MaxConns  int `mapstructure:"max_conns"`
		MinConns  int `mapstructure:"min_conns"`
		BatchSize int `mapstructure:"batch_size"`
	} `mapstructure:"pool"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

func (c *Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "local"
}

func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(filepath.Dir(configPath))
	viper.SetConfigFile(configPath)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	if config.Auth.Salt == "" {
		return nil, fmt.Errorf("auth.salt must be configured")
	}

	return &config, nil
}

func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = "prod"
	}
	if c.Auth.TrustedProxies <= 0 {
		c.Auth.TrustedProxies = 1
	}
	if c.Auth.LookupWorkers <= 0 {
		c.Auth.LookupWorkers = 32
	}
	if c.Audit.Workers <= 0 {
		c.Audit.Workers = 5
	}
	if c.Audit.BufferSize <= 0 {
		c.Audit.BufferSize = 1000
	}
	if c.Audit.BatchSize <= 0 {
		c.Audit.BatchSize = 100
	}
	if c.Audit.FlushInterval <= 0 {
		c.Audit.FlushInterval = 100 * time.Millisecond
	}
	// Audit rows go to the lookup store unless a dedicated log store
	// is configured.
	if c.LogDB.Type == "" {
		c.LogDB = c.DB
	}
}
