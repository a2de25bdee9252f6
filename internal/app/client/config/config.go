package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fieldsync/internal/config"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultAPIPrefix     = "/api/v1"
	defaultLogLevel      = "info"
	defaultConfigDir     = ".fieldsync"
	defaultDBName        = "fieldsync.db"
	configFileName       = "config"
)

type Config struct {
	Env           string `mapstructure:"app_env"`
	ServerAddress string `mapstructure:"server_address"`
	EnableTLS     bool   `mapstructure:"enable_tls"`
	APIPrefix     string `mapstructure:"api_prefix"`
	ConfigDir     string `mapstructure:"config_dir"`
	DBPath        string `mapstructure:"db_path"`
	TokenPath     string `mapstructure:"token_path"`
	LogLevel      string `mapstructure:"log_level"`
	LogFile       string `mapstructure:"log_file"`

	SyncCooldownSeconds  int `mapstructure:"sync_cooldown_seconds"`
	SyncIntervalSeconds  int `mapstructure:"sync_interval_seconds"`
	SyncBatchSize        int `mapstructure:"sync_batch_size"`
	ProbeIntervalSeconds int `mapstructure:"probe_interval_seconds"`
	RetentionDays        int `mapstructure:"retention_days"`

	HTTPTimeoutSeconds int `mapstructure:"http_timeout_seconds"`
	HTTPMaxAttempts    int `mapstructure:"http_max_attempts"`
	HTTPBaseDelayMS    int `mapstructure:"http_base_delay_ms"`

	// ConfigFile is the YAML file that was read, if any.
	ConfigFile string `mapstructure:"-"`
}

var keys = []string{
	"app_env", "server_address", "enable_tls", "api_prefix", "config_dir", "db_path", "token_path",
	"log_level", "log_file", "sync_cooldown_seconds", "sync_interval_seconds", "sync_batch_size",
	"probe_interval_seconds", "retention_days", "http_timeout_seconds", "http_max_attempts",
	"http_base_delay_ms",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", config.EnvLocal)
	v.SetDefault("server_address", defaultServerAddress)
	v.SetDefault("enable_tls", false)
	v.SetDefault("api_prefix", defaultAPIPrefix)
	v.SetDefault("config_dir", defaultConfigDir)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("sync_cooldown_seconds", 30)
	v.SetDefault("sync_interval_seconds", 0)
	v.SetDefault("sync_batch_size", 0)
	v.SetDefault("probe_interval_seconds", 15)
	v.SetDefault("retention_days", 0)
	v.SetDefault("http_timeout_seconds", 30)
	v.SetDefault("http_max_attempts", 3)
	v.SetDefault("http_base_delay_ms", 1000)
}

// Loader reads configuration from .env, the environment and an optional config.yaml in the
// config directory. The environment wins over the file.
type Loader struct {
	v *viper.Viper
}

func NewLoader() *Loader {
	v := config.NewViper()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range keys {
		_ = v.BindEnv(k, strings.ToUpper(k))
	}
	setDefaults(v)
	return &Loader{v: v}
}

// Load builds and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	if _, err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	dir := expandConfigDir(l.v.GetString("config_dir"))
	l.v.SetConfigName(configFileName)
	l.v.SetConfigType("yaml")
	l.v.AddConfigPath(dir)
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return l.build()
}

func (l *Loader) build() (*Config, error) {
	var c Config
	if err := l.v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.ConfigFile = l.v.ConfigFileUsed()

	c.ConfigDir = expandConfigDir(c.ConfigDir)
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.ConfigDir, defaultDBName)
	}
	if c.TokenPath == "" {
		c.TokenPath = filepath.Join(c.ConfigDir, "token")
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Watch calls fn with the reloaded configuration whenever the config file changes.
// Invalid edits are reported through onErr and the previous configuration stays in effect.
func (l *Loader) Watch(fn func(*Config), onErr func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c, err := l.build()
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(c)
	})
	l.v.WatchConfig()
}

// Load is a shortcut for NewLoader().Load().
func Load() (*Config, error) {
	return NewLoader().Load()
}

// MustLoad loads the configuration or panics.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return c
}

func expandConfigDir(dir string) string {
	if dir == "" {
		dir = defaultConfigDir
	}
	if dir == defaultConfigDir || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		return filepath.Join(home, strings.TrimPrefix(dir, "~/"))
	}
	return dir
}

func (c *Config) validate() error {
	if !config.ValidEnv(c.Env) {
		return fmt.Errorf("app_env must be one of local, dev, prod, got %q", c.Env)
	}
	if c.ServerAddress == "" {
		return errors.New("server_address must not be empty")
	}
	if c.SyncCooldownSeconds < 0 || c.SyncIntervalSeconds < 0 || c.ProbeIntervalSeconds < 0 || c.RetentionDays < 0 {
		return errors.New("sync intervals and retention must not be negative")
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return errors.New("http_timeout_seconds must be positive")
	}
	if c.HTTPMaxAttempts < 1 {
		return errors.New("http_max_attempts must be at least 1")
	}
	if c.HTTPBaseDelayMS <= 0 {
		return errors.New("http_base_delay_ms must be positive")
	}
	return nil
}

// BaseURL is the API root, e.g. http://localhost:8080/api/v1.
func (c *Config) BaseURL() string {
	addr := c.ServerAddress
	if !strings.Contains(addr, "://") {
		scheme := "http://"
		if c.EnableTLS {
			scheme = "https://"
		}
		addr = scheme + addr
	}
	prefix := strings.Trim(c.APIPrefix, "/")
	if prefix == "" {
		return strings.TrimRight(addr, "/")
	}
	return strings.TrimRight(addr, "/") + "/" + prefix
}

func (c *Config) SyncCooldown() time.Duration {
	return time.Duration(c.SyncCooldownSeconds) * time.Second
}

func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSeconds) * time.Second
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c *Config) HTTPBaseDelay() time.Duration {
	return time.Duration(c.HTTPBaseDelayMS) * time.Millisecond
}

func (c *Config) IsProd() bool {
	return c.Env == config.EnvProd
}

func (c *Config) IsDev() bool {
	return c.Env == config.EnvDev
}

func (c *Config) IsLocal() bool {
	return c.Env == config.EnvLocal || c.Env == ""
}
