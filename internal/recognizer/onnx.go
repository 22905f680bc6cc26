//go:build cgo
// +build cgo

package recognizer

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/kakusu/internal/config"
	"github.com/hyperjump/kakusu/internal/models"
)

var (
	ortOnce sync.Once
	ortErr  error
)

func initRuntime(libraryPath string) error {
	ortOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortErr = ort.InitializeEnvironment()
	})
	return ortErr
}

// ONNX runs a BERT-style token-classification model. It requires CGO and the onnxruntime shared library.
type ONNX struct {
	session   *ort.AdvancedSession
	tokenizer *WordPiece
	labels    []string
	maxTokens int
	// Pre-allocated tensors for Run(); we update input data and read output.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNX loads the model, vocabulary and labels named in cfg.
func NewONNX(cfg config.ONNXConfig) (*ONNX, error) {
	if err := initRuntime(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}
	tokenizer, err := LoadWordPiece(cfg.VocabPath, cfg.Lowercase)
	if err != nil {
		return nil, err
	}
	labels, err := LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, err
	}
	maxTokens := cfg.MaxTokens
	shape := ort.NewShape(1, int64(maxTokens))

	inputIDsTensor, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	attentionMaskTensor, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		_ = inputIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	tokenTypeIDsTensor, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		_ = inputIDsTensor.Destroy()
		_ = attentionMaskTensor.Destroy()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(maxTokens), int64(len(labels))))
	if err != nil {
		_ = inputIDsTensor.Destroy()
		_ = attentionMaskTensor.Destroy()
		_ = tokenTypeIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		_ = inputIDsTensor.Destroy()
		_ = attentionMaskTensor.Destroy()
		_ = tokenTypeIDsTensor.Destroy()
		_ = outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNX{
		session:             session,
		tokenizer:           tokenizer,
		labels:              labels,
		maxTokens:           maxTokens,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		tokenTypeIDsTensor:  tokenTypeIDsTensor,
		outputTensor:        outputTensor,
	}, nil
}

// Recognize tags every word with the label of its first piece and groups the BIO tags into spans.
func (o *ONNX) Recognize(ctx context.Context, text string) ([]models.Span, error) {
	words := o.tokenizer.Words(text)
	encs, groups := o.tokenizer.Windows(words, o.maxTokens)

	o.mu.Lock()
	defer o.mu.Unlock()

	var spans []models.Span
	numLabels := len(o.labels)
	for i, enc := range encs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		copy(o.inputIDsTensor.GetData(), enc.ids)
		copy(o.attentionMaskTensor.GetData(), enc.mask)
		copy(o.tokenTypeIDsTensor.GetData(), enc.typeIDs)

		if err := o.session.Run(); err != nil {
			return nil, fmt.Errorf("inference failed: %w", err)
		}

		logits := o.outputTensor.GetData()
		wordLabels := make([]string, len(enc.firstToken))
		for w, pos := range enc.firstToken {
			wordLabels[w] = o.labels[argmax(logits[pos*numLabels:(pos+1)*numLabels])]
		}
		spans = append(spans, decodeBIO(text, groups[i], wordLabels)...)
	}
	return spans, nil
}

// Close destroys the session and tensors.
func (o *ONNX) Close() error {
	var err error
	if o.session != nil {
		err = o.session.Destroy()
		o.session = nil
	}
	if o.inputIDsTensor != nil {
		_ = o.inputIDsTensor.Destroy()
		o.inputIDsTensor = nil
	}
	if o.attentionMaskTensor != nil {
		_ = o.attentionMaskTensor.Destroy()
		o.attentionMaskTensor = nil
	}
	if o.tokenTypeIDsTensor != nil {
		_ = o.tokenTypeIDsTensor.Destroy()
		o.tokenTypeIDsTensor = nil
	}
	if o.outputTensor != nil {
		_ = o.outputTensor.Destroy()
		o.outputTensor = nil
	}
	return err
}
