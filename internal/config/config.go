// Package config holds the proxy server's configuration and logging setup.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds proxy configuration.
type Config struct {
	Port          int
	SharedDir     string
	AllowedOrigin string
	LogLevel      string
	LogFormat     string
	MaxUploadMB   int64

	// ReplyTimeout bounds one streamed chat reply. Zero means unbounded.
	ReplyTimeout time.Duration
}

// SharedFile returns the path of the published study document.
func (c Config) SharedFile(name string) string {
	return filepath.Join(c.SharedDir, name)
}

// MaxUploadBytes returns the request body limit for uploads.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// LoadDotEnv loads variables from the named files, or ".env" when none are
// given. Variables already set in the environment win. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		SharedDir:     getEnv("STUDYLM_SHARED_DIR", defaultSharedDir()),
		AllowedOrigin: getEnv("STUDYLM_ALLOWED_ORIGIN", "http://localhost:3000"),
		LogLevel:      getEnv("STUDYLM_LOG_LEVEL", "info"),
		LogFormat:     strings.ToLower(getEnv("STUDYLM_LOG_FORMAT", "text")),
	}

	port, err := strconv.Atoi(getEnv("PORT", "5001"))
	if err != nil || port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT %q", os.Getenv("PORT"))
	}
	cfg.Port = port

	maxMB, err := strconv.ParseInt(getEnv("STUDYLM_MAX_UPLOAD_MB", "50"), 10, 64)
	if err != nil || maxMB <= 0 {
		return nil, fmt.Errorf("invalid STUDYLM_MAX_UPLOAD_MB %q", os.Getenv("STUDYLM_MAX_UPLOAD_MB"))
	}
	cfg.MaxUploadMB = maxMB

	timeout, err := time.ParseDuration(getEnv("STUDYLM_REPLY_TIMEOUT", "2m"))
	if err != nil || timeout < 0 {
		return nil, fmt.Errorf("invalid STUDYLM_REPLY_TIMEOUT %q", os.Getenv("STUDYLM_REPLY_TIMEOUT"))
	}
	cfg.ReplyTimeout = timeout

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid STUDYLM_LOG_FORMAT %q (want text or json)", cfg.LogFormat)
	}
	return cfg, nil
}

// defaultSharedDir places the shared document next to the default database.
func defaultSharedDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "shared"
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "studylm", "shared")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
