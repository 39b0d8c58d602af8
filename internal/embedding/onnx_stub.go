//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("local embedding provider requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXProvider stub type when built without CGO (see onnx.go for the real implementation).
type ONNXProvider struct{}

// NewONNXProvider returns an error when built without CGO (ONNX not available).
func NewONNXProvider(_, _ string, _, _ int) (*ONNXProvider, error) {
	return nil, errNoCGO
}

func (p *ONNXProvider) Embed(context.Context, string) ([]float32, error) { return nil, errNoCGO }
func (p *ONNXProvider) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errNoCGO
}
func (p *ONNXProvider) Dimensions() int { return 0 }
func (p *ONNXProvider) ModelID() string { return "" }
func (p *ONNXProvider) Close() error    { return nil }
