package llm

import (
	"context"

	"github.com/LukeBaker08/velosight/model"
)

// Options configures one generation call.
type Options struct {
	// Temperature for sampling. Analyses run at 0 for reproducibility.
	Temperature float64
	// Schema, when set, switches the model into structured output mode and
	// enforces the schema server-side. When nil plain JSON mode is used.
	Schema *model.OutputSchema
}

// Generator produces model output for a system/user prompt pair.
type Generator interface {
	Generate(ctx context.Context, system string, user string, opts *Options) (string, error)
}
