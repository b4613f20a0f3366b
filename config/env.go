package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv reads KEY=value pairs from a .env file into the process
// environment. Variables already set are left alone, and a missing file is
// not an error.
func LoadEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("read %s: %w", path, err)
}
