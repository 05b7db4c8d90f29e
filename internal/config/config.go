// Package config loads the sessionlock configuration from a YAML file and the environment.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SESSIONLOCK_REDIS_ADDR.
const EnvPrefix = "SESSIONLOCK_"

// Backend names accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Config is the full runtime configuration.
type Config struct {
	Backend               string        `mapstructure:"backend" yaml:"backend"`
	Namespace             string        `mapstructure:"namespace" yaml:"namespace"`
	DefaultTimeoutMinutes int           `mapstructure:"default_timeout_minutes" yaml:"default_timeout_minutes"`
	SweepInterval         time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`

	Redis      RedisConfig      `mapstructure:"redis" yaml:"redis"`
	Mongo      MongoConfig      `mapstructure:"mongo" yaml:"mongo"`
	Encryption EncryptionConfig `mapstructure:"encryption" yaml:"encryption"`
	HTTP       HTTPConfig       `mapstructure:"http" yaml:"http"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri" yaml:"uri"`
	Database   string `mapstructure:"database" yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// EncryptionConfig holds base64-encoded AES-256 keys. An empty Key disables payload encryption.
type EncryptionConfig struct {
	Key          string   `mapstructure:"key" yaml:"key"`
	FallbackKeys []string `mapstructure:"fallback_keys" yaml:"fallback_keys"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Backend:               BackendMemory,
		Namespace:             "default",
		DefaultTimeoutMinutes: 20,
		SweepInterval:         time.Minute,
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "sessionlock:",
		},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "sessionlock",
			Collection: "sessions",
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// envKeys maps environment variables (without prefix) to config paths.
var envKeys = map[string]string{
	"BACKEND":                  "backend",
	"NAMESPACE":                "namespace",
	"DEFAULT_TIMEOUT_MINUTES":  "default_timeout_minutes",
	"SWEEP_INTERVAL":           "sweep_interval",
	"REDIS_ADDR":               "redis.addr",
	"REDIS_PASSWORD":           "redis.password",
	"REDIS_DB":                 "redis.db",
	"REDIS_PREFIX":             "redis.prefix",
	"MONGO_URI":                "mongo.uri",
	"MONGO_DATABASE":           "mongo.database",
	"MONGO_COLLECTION":         "mongo.collection",
	"ENCRYPTION_KEY":           "encryption.key",
	"ENCRYPTION_FALLBACK_KEYS": "encryption.fallback_keys",
	"HTTP_ADDR":                "http.addr",
	"LOG_LEVEL":                "log.level",
	"LOG_FORMAT":               "log.format",
}

// Load reads the YAML file at path (skipped when path is empty), applies
// SESSIONLOCK_* environment overrides and validates the result.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	raw := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	for env, key := range envKeys {
		if val, ok := lookup(EnvPrefix + env); ok {
			setPath(raw, key, val)
		}
	}

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setPath(m map[string]any, path string, val any) {
	parts := strings.Split(path, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = val
}

// Validate rejects configurations the store cannot be built from.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendMemory, BackendRedis, BackendMongo:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q (want memory, redis or mongo)", c.Backend))
	}
	if c.DefaultTimeoutMinutes <= 0 {
		errs = append(errs, errors.New("default_timeout_minutes must be positive"))
	}
	if c.SweepInterval < 0 {
		errs = append(errs, errors.New("sweep_interval must not be negative"))
	}
	if c.Backend == BackendRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required for the redis backend"))
	}
	if c.Backend == BackendMongo && c.Mongo.URI == "" {
		errs = append(errs, errors.New("mongo.uri is required for the mongo backend"))
	}
	if _, _, err := c.Encryption.Keys(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Enabled reports whether payload encryption is configured.
func (e EncryptionConfig) Enabled() bool {
	return e.Key != ""
}

// Keys decodes the active and fallback keys. Every key must decode to 32 bytes.
func (e EncryptionConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if !e.Enabled() {
		if len(e.FallbackKeys) > 0 {
			return nil, nil, errors.New("encryption.fallback_keys set without encryption.key")
		}
		return nil, nil, nil
	}
	active, err = decodeKey("encryption.key", e.Key)
	if err != nil {
		return nil, nil, err
	}
	for i, k := range e.FallbackKeys {
		fk, err := decodeKey(fmt.Sprintf("encryption.fallback_keys[%d]", i), k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, fk)
	}
	return active, fallback, nil
}

func decodeKey(name, s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%s is not valid base64: %w", name, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s must decode to 32 bytes, got %d", name, len(key))
	}
	return key, nil
}
