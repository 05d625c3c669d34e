// Package config loads service configuration from compiled defaults, an
// XDG JSON config file, and LIFELOOM_* environment variables, in that
// order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Gemini  GeminiConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type GeminiConfig struct {
	APIKey string
	Models string // comma-separated fallback cascade, empty for the default
}

type LogConfig struct {
	Level string
}

// ModelList splits the configured model cascade. Nil when unset.
func (g GeminiConfig) ModelList() []string {
	if strings.TrimSpace(g.Models) == "" {
		return nil
	}
	var models []string
	for _, m := range strings.Split(g.Models, ",") {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	return models
}

func defaults() Config {
	return Config{
		Server:  ServerConfig{Port: 4600},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Log:     LogConfig{Level: "info"},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "lifeloom-data"
		}
	}
	return filepath.Join(dir, "lifeloom")
}

// Load reads configuration from the JSON config file at
// $XDG_CONFIG_HOME/lifeloom/config.json with environment overrides. The
// Gemini API key is required: the interview cannot run without its
// generator.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if cfg.Gemini.APIKey == "" {
		return Config{}, fmt.Errorf(
			"missing required config: Gemini API key. Set the LIFELOOM_GEMINI_API_KEY environment variable")
	}
	return cfg, nil
}
