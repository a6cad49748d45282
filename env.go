package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// loadEnv pulls optional overrides (LISTEN_ADDR, CONFIG_PATH) from a .env
// file next to the binary. A missing file is fine; the flags carry the
// defaults.
func loadEnv(envFile string) error {
	err := godotenv.Load(envFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// envOr returns the named environment variable or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
