// Package config loads lessonloop settings from defaults, an optional YAML
// file, a .env file, and LESSONLOOP_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/lessonloop/internal/llm"
	"github.com/abhisek/lessonloop/internal/tutor"
)

// Config is the full application configuration.
type Config struct {
	// DBPath is the SQLite file. Empty means the default XDG location.
	DBPath  string `yaml:"db_path"`
	LogMode string `yaml:"log_mode"`

	LLM     llm.Config    `yaml:"llm"`
	Engine  EngineConfig  `yaml:"engine"`
	Server  ServerConfig  `yaml:"server"`
	Redis   RedisConfig   `yaml:"redis"`
	Prompts PromptsConfig `yaml:"prompts"`
	Catalog CatalogConfig `yaml:"catalog"`
}

// EngineConfig tunes the tutoring components.
type EngineConfig struct {
	HistoryLimit      int `yaml:"history_limit"`
	PromptHistory     int `yaml:"prompt_history"`
	ExcerptChars      int `yaml:"excerpt_chars"`
	IntentRetries     int `yaml:"intent_retries"`
	ChatRetries       int `yaml:"chat_retries"`
	GenerationRetries int `yaml:"generation_retries"`
	EvaluationRetries int `yaml:"evaluation_retries"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig enables turn events when Addr is set.
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

// PromptsConfig points at a directory of <name>.tmpl template overrides.
type PromptsConfig struct {
	Dir string `yaml:"dir"`
}

// CatalogConfig points at a lesson catalog. Empty uses the built-in one.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	d := tutor.DefaultConfig()
	return Config{
		LogMode: "prod",
		LLM:     llm.DefaultConfig(),
		Engine: EngineConfig{
			HistoryLimit:      d.HistoryLimit,
			PromptHistory:     d.Chat.HistoryLimit,
			ExcerptChars:      d.Chat.ExcerptChars,
			IntentRetries:     d.Intent.MaxRetries,
			ChatRetries:       d.Chat.MaxRetries,
			GenerationRetries: d.Practice.MaxRetries,
			EvaluationRetries: d.Evaluation.MaxRetries,
		},
		Server: ServerConfig{Addr: ":8080"},
		Redis:  RedisConfig{Channel: "lessonloop:turns"},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/lessonloop/config.yaml.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "lessonloop", "config.yaml"), nil
}

// Load builds the configuration. An explicit path must exist; with an
// empty path the default file is read if present.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.ApplyEnv()
	if !cfg.LLM.HasKey() {
		cfg.LLM, _ = llm.DiscoverConfig(cfg.LLM)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from LESSONLOOP_* environment variables.
func (c *Config) ApplyEnv() {
	setString(&c.DBPath, "LESSONLOOP_DB")
	setString(&c.LogMode, "LESSONLOOP_LOG_MODE")
	setString(&c.Server.Addr, "LESSONLOOP_SERVER_ADDR")
	setString(&c.Redis.Addr, "LESSONLOOP_REDIS_ADDR")
	setString(&c.Redis.Channel, "LESSONLOOP_REDIS_CHANNEL")
	setString(&c.Prompts.Dir, "LESSONLOOP_PROMPTS_DIR")
	setString(&c.Catalog.Path, "LESSONLOOP_CATALOG")
	setInt(&c.Engine.HistoryLimit, "LESSONLOOP_HISTORY_LIMIT")
	c.LLM.ApplyEnv()
}

// Validate checks settings that do not depend on the chosen provider.
// Provider credentials are checked when a client is built.
func (c Config) Validate() error {
	switch c.LogMode {
	case "dev", "prod":
	default:
		return fmt.Errorf("log_mode must be dev or prod, got %q", c.LogMode)
	}
	e := c.Engine
	for name, v := range map[string]int{
		"engine.history_limit":      e.HistoryLimit,
		"engine.prompt_history":     e.PromptHistory,
		"engine.excerpt_chars":      e.ExcerptChars,
		"engine.intent_retries":     e.IntentRetries,
		"engine.chat_retries":       e.ChatRetries,
		"engine.generation_retries": e.GenerationRetries,
		"engine.evaluation_retries": e.EvaluationRetries,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	return nil
}

// TutorConfig maps the engine section onto the component configs.
func (c Config) TutorConfig() tutor.Config {
	t := tutor.DefaultConfig()
	e := c.Engine

	t.HistoryLimit = e.HistoryLimit
	t.Intent.HistoryLimit = e.PromptHistory
	t.Intent.MaxRetries = e.IntentRetries
	t.Chat.HistoryLimit = e.PromptHistory
	t.Chat.ExcerptChars = e.ExcerptChars
	t.Chat.MaxRetries = e.ChatRetries
	t.Practice.ExcerptChars = e.ExcerptChars
	t.Practice.MaxRetries = e.GenerationRetries
	t.Evaluation.MaxRetries = e.EvaluationRetries
	return t
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
