package recognizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/hyperjump/kakusu/internal/config"
	"github.com/hyperjump/kakusu/internal/models"
)

const llmPrompt = `Extract every person name and every organization name from the text below.
Answer with JSON only: an array of objects {"text": "<exact text as written>", "label": "PERSON" or "ORG"}.
Answer [] when there are none.

Text:
%s`

// ErrMalformedReply is returned when the model reply holds no JSON array.
var ErrMalformedReply = errors.New("llm reply has no JSON array")

// LLM asks a language model to list entities and parses its JSON reply.
type LLM struct {
	model   llms.Model
	timeout time.Duration
	retries uint64
	backoff time.Duration
	logger  *zap.Logger
}

// NewLLM wraps model. retries is the number of retries after the first attempt.
func NewLLM(model llms.Model, timeout time.Duration, retries int, logger *zap.Logger) *LLM {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retries < 0 {
		retries = 0
	}
	return &LLM{model: model, timeout: timeout, retries: uint64(retries), backoff: 500 * time.Millisecond, logger: logger}
}

// NewLLMFromConfig creates the provider client named in cfg.
func NewLLMFromConfig(cfg config.LLMConfig, logger *zap.Logger) (*LLM, error) {
	var model llms.Model
	var err error
	switch cfg.Provider {
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model), ollama.WithFormat("json")}
		if cfg.URL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.URL))
		}
		model, err = ollama.New(opts...)
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.URL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.URL))
		}
		model, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}
	return NewLLM(model, cfg.Timeout, cfg.Retries, logger), nil
}

// Recognize prompts the model and keeps the entities that occur in text.
func (l *LLM) Recognize(ctx context.Context, text string) ([]models.Span, error) {
	prompt := fmt.Sprintf(llmPrompt, text)
	backoff := retry.WithMaxRetries(l.retries, retry.NewExponential(l.backoff))

	var reply string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx := ctx
		if l.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, l.timeout)
			defer cancel()
		}
		out, err := llms.GenerateFromSinglePrompt(callCtx, l.model, prompt, llms.WithTemperature(0))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Debug("llm call failed, retrying", zap.Error(err))
			return retry.RetryableError(err)
		}
		reply = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("llm recognition failed: %w", err)
	}
	return parseReply(text, reply)
}

type llmEntity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// parseReply cuts the JSON array out of reply and locates each entity in text.
// Entities that do not occur verbatim in text are dropped.
func parseReply(text, reply string) ([]models.Span, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end < start {
		return nil, ErrMalformedReply
	}
	var items []llmEntity
	if err := json.Unmarshal([]byte(reply[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	var spans []models.Span
	for _, it := range items {
		name := strings.TrimSpace(it.Text)
		if name == "" {
			continue
		}
		at := strings.Index(text, name)
		if at < 0 {
			continue
		}
		spans = append(spans, models.Span{Text: name, Label: it.Label, Start: at, End: at + len(name)})
	}
	return spans, nil
}

// Close is a no-op; provider clients hold no resources.
func (l *LLM) Close() error {
	return nil
}
