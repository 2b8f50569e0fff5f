package orchestrate

import (
	"context"
	"strings"

	ports "github.com/ZanzyTHEbar/ideaforge/forge/orchestrate/ports"
)

// GenerationStage produces a full replacement artifact from generation
// instructions and the artifact's current content.
type GenerationStage struct {
	provider ports.CompletionProvider
	opts     ports.Options
}

// NewGenerationStage creates a generation stage bound to a provider.
func NewGenerationStage(provider ports.CompletionProvider, opts ports.Options) *GenerationStage {
	return &GenerationStage{provider: provider, opts: opts}
}

// Generate invokes the provider once and returns the trimmed replacement
// content. A provider failure surfaces as a GenerationError.
func (s *GenerationStage) Generate(ctx context.Context, instructions, currentContent string) (string, error) {
	completion, err := s.provider.Complete(ctx, buildGenerationInput(instructions, currentContent), s.opts)
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	return strings.TrimSpace(completion.Text), nil
}
