//go:build !cgo
// +build !cgo

package recognizer

import (
	"context"
	"errors"

	"github.com/hyperjump/kakusu/internal/config"
	"github.com/hyperjump/kakusu/internal/models"
)

// ONNX stub type when built without CGO (see onnx.go for real implementation).
type ONNX struct{}

// NewONNX returns an error when built without CGO (ONNX not available).
func NewONNX(_ config.ONNXConfig) (*ONNX, error) {
	return nil, errors.New("ONNX recognizer requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

func (o *ONNX) Recognize(_ context.Context, _ string) ([]models.Span, error) {
	return nil, errors.New("ONNX recognizer not available")
}

func (o *ONNX) Close() error { return nil }
