// Package config loads kanbangraph settings from defaults, an optional YAML
// file, KANBANGRAPH_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hanpama/kanbangraph/internal/complexity"
	"github.com/hanpama/kanbangraph/internal/otel"
	"github.com/hanpama/kanbangraph/internal/resolver"
	"github.com/hanpama/kanbangraph/internal/store/dynamo"
)

// EnvPrefix prefixes every environment override, e.g.
// KANBANGRAPH_STORE_DRIVER for store.driver.
const EnvPrefix = "KANBANGRAPH"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// User backends. An empty backend keeps users in the main store.
const (
	UsersInStore  = ""
	UsersDynamoDB = "dynamodb"
)

type Config struct {
	Server     ServerConfig          `mapstructure:"server"`
	Complexity complexity.Config     `mapstructure:"complexity"`
	Loader     resolver.LoaderConfig `mapstructure:"loader"`
	Store      StoreConfig           `mapstructure:"store"`
	Users      UsersConfig           `mapstructure:"users"`
	Telemetry  otel.Config           `mapstructure:"telemetry"`
	Log        LogConfig             `mapstructure:"log"`
}

type ServerConfig struct {
	Addr          string        `mapstructure:"addr"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Pretty        bool          `mapstructure:"pretty"`
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes"`
	CORSOrigins   []string      `mapstructure:"cors_origins"`
	GraphiQL      bool          `mapstructure:"graphiql"`
	Introspection bool          `mapstructure:"introspection"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// Seed loads the sample dataset at startup.
	Seed bool `mapstructure:"seed"`
}

type UsersConfig struct {
	Backend  string        `mapstructure:"backend"`
	DynamoDB dynamo.Config `mapstructure:"dynamodb"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SlogLevel parses Level; Validate has already rejected unknown names.
func (c LogConfig) SlogLevel() slog.Level {
	var l slog.Level
	_ = l.UnmarshalText([]byte(c.Level))
	return l
}

var defaults = map[string]any{
	"server.addr":                      ":8080",
	"server.timeout":                   10 * time.Second,
	"server.pretty":                    false,
	"server.max_body_bytes":            1 << 20,
	"server.cors_origins":              []string{},
	"server.graphiql":                  true,
	"server.introspection":             true,
	"complexity.max_aliases":           complexity.DefaultConfig().MaxAliases,
	"complexity.max_aliases_per_level": complexity.DefaultConfig().MaxAliasesPerLevel,
	"loader.max_batch":                 0,
	"loader.max_span":                  0,
	"store.driver":                     DriverMemory,
	"store.dsn":                        "",
	"store.seed":                       true,
	"users.backend":                    UsersInStore,
	"users.dynamodb.table":             "kanbangraph-users",
	"users.dynamodb.region":            "",
	"users.dynamodb.endpoint":          "",
	"telemetry.endpoint":               "",
	"telemetry.service":                "kanbangraph",
	"log.level":                        "info",
	"log.format":                       "text",
}

// New returns a viper instance with defaults and environment overrides.
// Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the YAML file at path, if any, and decodes v into a validated
// Config.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.Server.Addr == "" {
		add("server.addr is required")
	}
	if c.Server.Timeout < 0 {
		add("server.timeout must not be negative")
	}
	if c.Complexity.MaxAliases < 0 {
		add("complexity.max_aliases must not be negative")
	}
	if c.Complexity.MaxAliasesPerLevel < 0 {
		add("complexity.max_aliases_per_level must not be negative")
	}
	if c.Loader.MaxBatch < 0 {
		add("loader.max_batch must not be negative")
	}
	if c.Loader.MaxSpan < 0 {
		add("loader.max_span must not be negative")
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			add("store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		add("store.driver %q is not one of %s, %s, %s", c.Store.Driver, DriverMemory, DriverSQLite, DriverPostgres)
	}
	switch c.Users.Backend {
	case UsersInStore:
	case UsersDynamoDB:
		if c.Users.DynamoDB.Table == "" {
			add("users.dynamodb.table is required")
		}
	default:
		add("users.backend %q is not one of %q, %q", c.Users.Backend, UsersInStore, UsersDynamoDB)
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		add("log.level: %v", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		add("log.format %q is not one of text, json", c.Log.Format)
	}
	return errors.Join(errs...)
}
