// Package config loads landledger settings from a YAML file and LANDLEDGER_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"landledger/internal/authz"
	"landledger/internal/blob"
	"landledger/internal/core"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LANDLEDGER_"

// Config is the complete process configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Blob    blob.Config   `yaml:"blob"`
	Authz   AuthzConfig   `yaml:"authz"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
	Exports ExportsConfig `yaml:"exports"`
	Metrics MetricsConfig `yaml:"metrics"`
	Trace   TraceConfig   `yaml:"trace"`
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Driver      core.StorageDriver `yaml:"driver"`
	SQLitePath  string             `yaml:"sqlite_path"`
	PostgresDSN string             `yaml:"postgres_dsn"`
}

// AuthzConfig configures role enforcement. ModelPath and PolicyPath replace
// the built-in policy when both are set.
type AuthzConfig struct {
	Mode                string `yaml:"mode"`
	UnsafeAllowDisabled bool   `yaml:"unsafe_allow_disabled"`
	ModelPath           string `yaml:"model_path"`
	PolicyPath          string `yaml:"policy_path"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ExportsConfig sizes the report export worker. Retain caps how many
// finished exports are kept before the oldest are evicted.
type ExportsConfig struct {
	QueueSize int `yaml:"queue_size"`
	Retain    int `yaml:"retain"`
}

// Metrics backends.
const (
	MetricsPrometheus = "prometheus"
	MetricsExpvar     = "expvar"
)

// MetricsConfig selects the recorder behind /metrics.
type MetricsConfig struct {
	Backend string `yaml:"backend"`
}

// TraceConfig sends service spans as JSON lines to Output: "stderr",
// "stdout" or a file path. Empty disables tracing.
type TraceConfig struct {
	Output string `yaml:"output"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Storage: StorageConfig{Driver: core.StorageSQLite, SQLitePath: "landledger.db"},
		Blob:    blob.Config{Driver: blob.DriverFilesystem, FSRoot: "./blobdata"},
		Authz:   AuthzConfig{Mode: string(authz.ModeEnforce)},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  32 << 20,
		},
		Log:     LogConfig{Level: "info"},
		Exports: ExportsConfig{QueueSize: 16, Retain: 256},
		Metrics: MetricsConfig{Backend: MetricsPrometheus},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := decode(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}

	var storageDriver, blobDriver string
	str("STORAGE_DRIVER", &storageDriver)
	if storageDriver != "" {
		c.Storage.Driver = core.StorageDriver(storageDriver)
	}
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)

	str("BLOB_DRIVER", &blobDriver)
	if blobDriver != "" {
		c.Blob.Driver = blob.Driver(blobDriver)
	}
	str("BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("S3_BUCKET", &c.Blob.S3.Bucket)
	str("S3_REGION", &c.Blob.S3.Region)
	str("S3_PREFIX", &c.Blob.S3.Prefix)
	str("S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("S3_ACCESS_KEY_ID", &c.Blob.S3.AccessKeyID)
	str("S3_SECRET_ACCESS_KEY", &c.Blob.S3.SecretAccessKey)
	if err := boolean("S3_PATH_STYLE", &c.Blob.S3.PathStyle); err != nil {
		return err
	}

	str("AUTHZ_MODE", &c.Authz.Mode)
	if v := strings.TrimSpace(getenv(EnvPrefix + "AUTHZ_UNSAFE_ALLOW_DISABLED")); v != "" {
		c.Authz.UnsafeAllowDisabled = v == "1"
	}
	str("AUTHZ_MODEL_PATH", &c.Authz.ModelPath)
	str("AUTHZ_POLICY_PATH", &c.Authz.PolicyPath)

	str("METRICS_BACKEND", &c.Metrics.Backend)
	str("TRACE_OUTPUT", &c.Trace.Output)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	if err := boolean("LOG_DEVELOPMENT", &c.Log.Development); err != nil {
		return err
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "EXPORT_QUEUE_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sEXPORT_QUEUE_SIZE: %w", EnvPrefix, err)
		}
		c.Exports.QueueSize = n
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "EXPORT_RETAIN")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sEXPORT_RETAIN: %w", EnvPrefix, err)
		}
		c.Exports.Retain = n
	}
	return nil
}

// Validate checks the configuration for missing or contradictory settings.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case core.StorageMemory:
	case "", core.StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for the sqlite driver")
		}
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver %q is not one of memory|sqlite|postgres", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return errors.New("blob.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("blob.driver %q is not one of fs|s3|memory", c.Blob.Driver)
	}
	if _, err := c.AuthzMode(); err != nil {
		return err
	}
	if (c.Authz.ModelPath == "") != (c.Authz.PolicyPath == "") {
		return errors.New("authz.model_path and authz.policy_path must be set together")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		return errors.New("http.max_upload_bytes must be positive")
	}
	switch c.Metrics.Backend {
	case MetricsPrometheus, MetricsExpvar:
	default:
		return fmt.Errorf("metrics.backend %q is not one of prometheus|expvar", c.Metrics.Backend)
	}
	if c.Exports.QueueSize < 1 {
		return errors.New("exports.queue_size must be at least 1")
	}
	if c.Exports.Retain < 1 {
		return errors.New("exports.retain must be at least 1")
	}
	return nil
}

// AuthzMode returns the validated authorization mode.
func (c Config) AuthzMode() (authz.Mode, error) {
	return authz.ParseMode(c.Authz.Mode, c.Authz.UnsafeAllowDisabled)
}

// StorageOptions converts the storage section for core.OpenPersistentStore.
func (c Config) StorageOptions() core.StorageOptions {
	return core.StorageOptions{
		Driver:      c.Storage.Driver,
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// LogLevel returns the parsed log level, info when unset.
func (c Config) LogLevel() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
