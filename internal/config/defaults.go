package config

import "time"

// Unset marks chunking.overlap and extraction.coverage_percent that were not configured.
// Zero is a valid value for both, so their defaults key off this sentinel instead.
const Unset = -1

// unset returns a config whose zero-valid fields are marked Unset, ready to be decoded into.
func unset() Config {
	return Config{
		Chunking:   ChunkingConfig{Overlap: Unset},
		Extraction: ExtractionConfig{CoveragePercent: Unset},
	}
}

// Default returns a config with every default applied. Used when no config file exists.
func Default() *Config {
	cfg := unset()
	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)
	return &cfg
}

// ApplyDefaults sets default values for zero values in cfg. Overlap and coverage are defaulted
// only when negative (Unset), so an explicit 0 survives.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 1000
	}
	if cfg.Chunking.Overlap < 0 {
		cfg.Chunking.Overlap = 0
		if cfg.Chunking.Size > 200 {
			cfg.Chunking.Overlap = 200
		}
	}
	if cfg.Extraction.CoveragePercent < 0 {
		cfg.Extraction.CoveragePercent = 100
	}
	if cfg.Extraction.CheckpointEvery == 0 {
		cfg.Extraction.CheckpointEvery = 10
	}
	if cfg.Extraction.Workers == 0 {
		cfg.Extraction.Workers = 1
	}
	if cfg.Extraction.EntityTypes == nil {
		cfg.Extraction.EntityTypes = []string{"people", "companies"}
	}
	if cfg.Checkpoint.Backend == "" {
		cfg.Checkpoint.Backend = BackendFile
	}
	if cfg.Checkpoint.Dir == "" {
		cfg.Checkpoint.Dir = ".kakusu/checkpoints"
	}
	if cfg.Checkpoint.SQLitePath == "" {
		cfg.Checkpoint.SQLitePath = ".kakusu/checkpoints.db"
	}
	if cfg.Checkpoint.RedisAddr == "" {
		cfg.Checkpoint.RedisAddr = "localhost:6379"
	}
	if cfg.Checkpoint.RedisPrefix == "" {
		cfg.Checkpoint.RedisPrefix = "kakusu:checkpoint:"
	}
	if cfg.Checkpoint.TTL == 0 {
		cfg.Checkpoint.TTL = 7 * 24 * time.Hour
	}
	if cfg.Recognizer.Backend == "" {
		cfg.Recognizer.Backend = "lexicon"
	}
	if cfg.Recognizer.ONNX.MaxTokens == 0 {
		cfg.Recognizer.ONNX.MaxTokens = 512
	}
	if cfg.Recognizer.ONNX.OutputName == "" {
		cfg.Recognizer.ONNX.OutputName = "logits"
	}
	if cfg.Recognizer.LLM.Provider == "" {
		cfg.Recognizer.LLM.Provider = "ollama"
	}
	if cfg.Recognizer.LLM.Model == "" {
		cfg.Recognizer.LLM.Model = "llama3.1"
	}
	if cfg.Recognizer.LLM.Timeout == 0 {
		cfg.Recognizer.LLM.Timeout = 60 * time.Second
	}
	if cfg.Recognizer.LLM.Retries == 0 {
		cfg.Recognizer.LLM.Retries = 3
	}
	if cfg.Anonymize.Seed == 0 {
		cfg.Anonymize.Seed = 1
	}
	if cfg.Anonymize.OutputDir == "" {
		cfg.Anonymize.OutputDir = "."
	}
	if cfg.Anonymize.PreviewPercent == 0 {
		cfg.Anonymize.PreviewPercent = 5
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".xlsx", ".odt", ".rtf"}
	}
}
