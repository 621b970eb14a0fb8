package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/socialql/internal/db"

	"github.com/spf13/viper"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  db.Config
	Loader    LoaderConfig
	Query     QueryConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	Playground     bool
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// StoreConfig selects the store backend: "memory" or "postgres".
type StoreConfig struct {
	Driver string
}

type LoaderConfig struct {
	Wait     time.Duration
	MaxBatch int
}

type QueryConfig struct {
	// MaxDepth is the selection nesting ceiling.
	MaxDepth      int
	Introspection bool
}

type LogConfig struct {
	Level       string
	Development bool
}

type TelemetryConfig struct {
	Endpoint    string
	ServiceName string
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

func setDefaults(v *viper.Viper) {
	dbDefaults := db.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.playground", true)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)

	v.SetDefault("store.driver", DriverMemory)

	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)
	v.SetDefault("database.max_conns", dbDefaults.MaxConns)

	v.SetDefault("loader.wait", 5*time.Millisecond)
	v.SetDefault("loader.max_batch", 0)

	v.SetDefault("query.max_depth", 5)
	v.SetDefault("query.introspection", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", "socialql")
}

// Load reads config.yaml from configPath when present, then applies
// SOCIALQL_* environment overrides (SOCIALQL_QUERY_MAX_DEPTH and so on).
// A missing config file is not an error.
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix("SOCIALQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Addr:           v.GetString("server.addr"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
			Playground:     v.GetBool("server.playground"),
			ReadTimeout:    v.GetDuration("server.read_timeout"),
			WriteTimeout:   v.GetDuration("server.write_timeout"),
			IdleTimeout:    v.GetDuration("server.idle_timeout"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
		},
		Store: StoreConfig{Driver: strings.ToLower(v.GetString("store.driver"))},
		Database: db.Config{
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			DBName:   v.GetString("database.dbname"),
			SSLMode:  v.GetString("database.sslmode"),
			MaxConns: v.GetInt32("database.max_conns"),
		},
		Loader: LoaderConfig{
			Wait:     v.GetDuration("loader.wait"),
			MaxBatch: v.GetInt("loader.max_batch"),
		},
		Query: QueryConfig{
			MaxDepth:      v.GetInt("query.max_depth"),
			Introspection: v.GetBool("query.introspection"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		Telemetry: TelemetryConfig{
			Endpoint:    v.GetString("telemetry.endpoint"),
			ServiceName: v.GetString("telemetry.service_name"),
		},
	}
	return cfg, cfg.Validate()
}

// Validate reports settings the service cannot start with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverPostgres:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Query.MaxDepth < 1 {
		return fmt.Errorf("query.max_depth must be at least 1, got %d", c.Query.MaxDepth)
	}
	if c.Loader.Wait < 0 {
		return fmt.Errorf("loader.wait must not be negative")
	}
	if c.Loader.MaxBatch < 0 {
		return fmt.Errorf("loader.max_batch must not be negative")
	}
	return nil
}
