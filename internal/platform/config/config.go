package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rankforge/rankforge-backend/internal/platform/envutil"
)

// Config holds server and pipeline tunables. Values come from an optional
// YAML file, with environment variables taking precedence.
type Config struct {
	Port string `yaml:"port"`

	Worker   WorkerConfig   `yaml:"worker"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

type WorkerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	StaleRunning time.Duration `yaml:"stale_running"`
}

type PipelineConfig struct {
	// StageTimeout bounds each external stage call. Zero disables it.
	StageTimeout     time.Duration `yaml:"stage_timeout"`
	MaxSavedKeywords int           `yaml:"max_saved_keywords"`
}

func defaults() *Config {
	cfg := &Config{Port: "8080"}
	cfg.Worker.PollInterval = 1 * time.Second
	cfg.Worker.MaxAttempts = 5
	cfg.Worker.RetryDelay = 30 * time.Second
	cfg.Worker.StaleRunning = 2 * time.Minute
	cfg.Pipeline.StageTimeout = 0
	cfg.Pipeline.MaxSavedKeywords = 100
	return cfg
}

// Load reads the YAML file at path (skipped when path is empty or missing)
// and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Port = envutil.Str("PORT", cfg.Port)
	cfg.Worker.PollInterval = envutil.Duration("WORKER_POLL_INTERVAL", cfg.Worker.PollInterval)
	cfg.Worker.MaxAttempts = envutil.Int("WORKER_MAX_ATTEMPTS", cfg.Worker.MaxAttempts)
	cfg.Worker.RetryDelay = envutil.Duration("WORKER_RETRY_DELAY", cfg.Worker.RetryDelay)
	cfg.Worker.StaleRunning = envutil.Duration("WORKER_STALE_RUNNING", cfg.Worker.StaleRunning)
	cfg.Pipeline.StageTimeout = envutil.Duration("PIPELINE_STAGE_TIMEOUT", cfg.Pipeline.StageTimeout)
	cfg.Pipeline.MaxSavedKeywords = envutil.Int("PIPELINE_MAX_SAVED_KEYWORDS", cfg.Pipeline.MaxSavedKeywords)
	return cfg, nil
}
