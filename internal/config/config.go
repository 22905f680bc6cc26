// Package config provides configuration loading and structs for kakusu.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Anonymize  AnonymizeConfig  `yaml:"anonymize"`
	Watch      WatchConfig      `yaml:"watch"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ChunkingConfig holds chunk size and overlap in characters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// ExtractionConfig holds entity extraction settings.
type ExtractionConfig struct {
	CoveragePercent float64  `yaml:"coverage_percent"`
	CheckpointEvery int      `yaml:"checkpoint_every"`
	Workers         int      `yaml:"workers"`
	EntityTypes     []string `yaml:"entity_types"`
}

// Checkpoint backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// CheckpointConfig selects and configures the checkpoint store.
type CheckpointConfig struct {
	Backend     string        `yaml:"backend"`
	Path        string        `yaml:"path"`
	Dir         string        `yaml:"dir"`
	SQLitePath  string        `yaml:"sqlite_path"`
	RedisAddr   string        `yaml:"redis_addr"`
	RedisPrefix string        `yaml:"redis_prefix"`
	TTL         time.Duration `yaml:"ttl"`
}

// RecognizerConfig selects the entity recognizer backend.
type RecognizerConfig struct {
	Backend   string        `yaml:"backend"`
	CacheSize int           `yaml:"cache_size"`
	ONNX      ONNXConfig    `yaml:"onnx"`
	LLM       LLMConfig     `yaml:"llm"`
	Lexicon   LexiconConfig `yaml:"lexicon"`
}

// ONNXConfig holds token-classification model settings.
type ONNXConfig struct {
	ModelPath   string `yaml:"model_path"`
	VocabPath   string `yaml:"vocab_path"`
	LabelsPath  string `yaml:"labels_path"`
	LibraryPath string `yaml:"library_path"`
	MaxTokens   int    `yaml:"max_tokens"`
	Lowercase   bool   `yaml:"lowercase"`
	OutputName  string `yaml:"output_name"`
}

// LLMConfig holds settings for the LLM recognizer.
type LLMConfig struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	URL      string        `yaml:"url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  int           `yaml:"retries"`
}

// LexiconConfig points at a gazetteer file.
type LexiconConfig struct {
	Path string `yaml:"path"`
}

// AnonymizeConfig holds replacement settings.
type AnonymizeConfig struct {
	Seed           int      `yaml:"seed"`
	Keywords       []string `yaml:"keywords"`
	OutputDir      string   `yaml:"output_dir"`
	PreviewPercent float64  `yaml:"preview_percent"`
}

// WatchConfig holds inbox watch settings.
type WatchConfig struct {
	Inbox      string   `yaml:"inbox"`
	Outbox     string   `yaml:"outbox"`
	Extensions []string `yaml:"extensions"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := unset()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	configDir := filepath.Dir(path)
	for _, p := range []*string{
		&cfg.Checkpoint.Path,
		&cfg.Checkpoint.Dir,
		&cfg.Checkpoint.SQLitePath,
		&cfg.Recognizer.ONNX.ModelPath,
		&cfg.Recognizer.ONNX.VocabPath,
		&cfg.Recognizer.ONNX.LabelsPath,
		&cfg.Recognizer.ONNX.LibraryPath,
		&cfg.Recognizer.Lexicon.Path,
		&cfg.Anonymize.OutputDir,
		&cfg.Watch.Inbox,
		&cfg.Watch.Outbox,
	} {
		if *p != "" {
			*p = expandPath(*p, configDir)
		}
	}

	return &cfg, nil
}

// ApplyEnv overrides settings from KAKUSU_* environment variables.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("KAKUSU_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		cfg.Debug = true
	}
	if v := os.Getenv("KAKUSU_LLM_API_KEY"); v != "" {
		cfg.Recognizer.LLM.APIKey = v
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
