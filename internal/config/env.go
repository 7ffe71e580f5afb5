package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/promoclaim/internal/common"
	"github.com/joho/godotenv"
)

const (
	EnvDataDir    = "PROMOCLAIM_DATA_DIR"
	EnvPassphrase = "PROMOCLAIM_PASSPHRASE"
	EnvLogLevel   = "PROMOCLAIM_LOG_LEVEL"
)

// loadDotEnv loads path into the process environment when it exists.
// godotenv.Load never overrides variables that are already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: load %s: %v", common.ErrConfiguration, path, err)
	}
	return nil
}

func parseEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvPassphrase); v != "" {
		cfg.Passphrase = v
	}
}
