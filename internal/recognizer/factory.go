package recognizer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kakusu/internal/config"
)

// Backend names a recognizer implementation.
type Backend string

const (
	// BackendLexicon matches names from a YAML gazetteer.
	BackendLexicon Backend = "lexicon"
	// BackendONNX runs a local token-classification model. Requires CGO.
	BackendONNX Backend = "onnx"
	// BackendLLM prompts a language model through ollama or an OpenAI-compatible API.
	BackendLLM Backend = "llm"
)

// New creates the recognizer selected in cfg, wrapped in a cache when cfg.CacheSize > 0.
// Supported backends: "lexicon" (default), "onnx", "llm".
func New(cfg *config.RecognizerConfig, logger *zap.Logger) (Recognizer, error) {
	var r Recognizer
	switch Backend(cfg.Backend) {
	case BackendLexicon, "":
		if cfg.Lexicon.Path == "" {
			r = NewLexicon(nil, nil)
			break
		}
		lex, err := LoadLexicon(cfg.Lexicon.Path)
		if err != nil {
			return nil, err
		}
		r = lex
	case BackendONNX:
		o, err := NewONNX(cfg.ONNX)
		if err != nil {
			return nil, err
		}
		r = o
	case BackendLLM:
		l, err := NewLLMFromConfig(cfg.LLM, logger)
		if err != nil {
			return nil, err
		}
		r = l
	default:
		return nil, fmt.Errorf("unknown recognizer backend: %s (supported: lexicon, onnx, llm)", cfg.Backend)
	}
	if cfg.CacheSize > 0 {
		cached, err := NewCached(r, cfg.CacheSize)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		return cached, nil
	}
	return r, nil
}
