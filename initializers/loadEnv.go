package initializers

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

// LoadEnv reads .env when present. Variables already set in the process
// environment win.
func LoadEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Error loading .env file", "error", err)
	}
}
