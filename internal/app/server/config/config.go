package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldsync/internal/config"
)

const (
	defaultRunAddress = ":8080"
	defaultLogLevel   = "info"
)

type Config struct {
	Env    string
	DB     db
	Server server
	Logger logger
	Auth   auth
}

type db struct {
	DatabaseURI string `mapstructure:"database_uri"`
}

type server struct {
	RunAddress      string        `mapstructure:"run_address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type logger struct {
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type auth struct {
	// TokenHashes are bcrypt hashes of the static API tokens.
	TokenHashes []string      `mapstructure:"api_token_hashes"`
	SessionTTL  time.Duration `mapstructure:"session_ttl"`
}

// Load reads .env and the environment.
func Load() (*Config, error) {
	if _, err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	v := config.NewViper()
	v.SetDefault("app_env", config.EnvLocal)
	v.SetDefault("run_address", defaultRunAddress)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("session_ttl", "720h")
	for _, k := range []string{"database_uri", "log_file", "api_token_hashes"} {
		_ = v.BindEnv(k, strings.ToUpper(k))
	}

	c := &Config{
		Env: v.GetString("app_env"),
		DB:  db{DatabaseURI: v.GetString("database_uri")},
		Server: server{
			RunAddress:      v.GetString("run_address"),
			ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		},
		Logger: logger{
			LogLevel: v.GetString("log_level"),
			LogFile:  v.GetString("log_file"),
		},
		Auth: auth{
			TokenHashes: splitList(v.GetString("api_token_hashes")),
			SessionTTL:  v.GetDuration("session_ttl"),
		},
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return c
}

func (c *Config) validate() error {
	if !config.ValidEnv(c.Env) {
		return fmt.Errorf("app_env must be one of local, dev, prod, got %q", c.Env)
	}
	if c.Server.RunAddress == "" {
		return errors.New("run_address must not be empty")
	}
	if c.Env != config.EnvLocal && len(c.Auth.TokenHashes) == 0 {
		return errors.New("api_token_hashes is required outside the local environment")
	}
	return nil
}

func (c *Config) IsLocal() bool {
	return c.Env == config.EnvLocal
}

// splitList parses a comma separated list. Bcrypt hashes never contain commas.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
