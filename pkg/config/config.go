package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Store   StoreConfig   `mapstructure:"store"`
	Writer  WriterConfig  `mapstructure:"writer"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
	Redis   RedisConfig   `mapstructure:"redis"`
	MongoDB MongoDBConfig `mapstructure:"mongodb"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Name            string        `mapstructure:"name"`
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AdminConfig holds the shared secret that gates every admin view and action.
type AdminConfig struct {
	Key string `mapstructure:"key"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type WriterConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`

	// Host published in the registry; required when server.host is a
	// wildcard address.
	AdvertiseHost string `mapstructure:"advertise_host"`
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	PoolSize  int           `mapstructure:"pool_size"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "preorder")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("store.path", "orders.json")
	v.SetDefault("writer.request_timeout", 5*time.Second)
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.prefix", "/services/")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.key_prefix", "preorder:")
	v.SetDefault("redis.ttl", 5*time.Minute)
	v.SetDefault("mongodb.database", "preorder")
	v.SetDefault("mongodb.collection", "audit_logs")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
}

// Load reads configuration from configPath (skipped when empty) and from
// PREORDER_* environment variables, e.g. PREORDER_ADMIN_KEY.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("preorder")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only applies to keys viper already knows about.
	_ = v.BindEnv("admin.key")
	_ = v.BindEnv("redis.addr")
	_ = v.BindEnv("redis.password")
	_ = v.BindEnv("mongodb.uri")
	_ = v.BindEnv("etcd.advertise_host")

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		// Read config file
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Admin.Key == "" {
		return errors.New("admin.key must be set")
	}
	if c.Store.Path == "" {
		return errors.New("store.path must be set")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Writer.RequestTimeout <= 0 {
		return errors.New("writer.request_timeout must be positive")
	}
	return nil
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func (c *MongoDBConfig) Enabled() bool {
	return c.URI != ""
}

func (c *EtcdConfig) Enabled() bool {
	return len(c.Endpoints) > 0
}
