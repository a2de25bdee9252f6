package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// DefaultEnvPaths are tried in order when no explicit .env file is given.
var DefaultEnvPaths = []string{".env", "../.env", "../../.env"}

// LoadDotEnv loads the first existing .env file. Variables already set in the process
// environment win. A missing file is not an error.
func LoadDotEnv(paths ...string) (string, error) {
	if len(paths) == 0 {
		paths = DefaultEnvPaths
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return p, fmt.Errorf("load %s: %w", p, err)
		}
		return p, nil
	}
	log.Println("No .env file found, relying on environment variables")
	return "", nil
}

// NewViper returns a viper instance bound to the process environment.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	return v
}

// ValidEnv reports whether env is one of local, dev, prod.
func ValidEnv(env string) bool {
	switch env {
	case EnvLocal, EnvDev, EnvProd:
		return true
	}
	return false
}
