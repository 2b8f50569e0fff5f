package orchestrate

import (
	"context"
	"strings"

	ports "github.com/ZanzyTHEbar/ideaforge/forge/orchestrate/ports"
)

// SparringStage answers brainstorming turns as a business coach. It shares the
// completion provider with the orchestration pipeline but has no persistence
// side effects.
type SparringStage struct {
	provider ports.CompletionProvider
	opts     ports.Options
}

// NewSparringStage creates a sparring stage bound to a provider.
func NewSparringStage(provider ports.CompletionProvider, opts ports.Options) *SparringStage {
	return &SparringStage{provider: provider, opts: opts}
}

// Respond sends the business case and full turn history to the provider and
// returns the coach's reply.
func (s *SparringStage) Respond(ctx context.Context, businessCase string, turns []ports.ChatMessage) (string, error) {
	completion, err := s.provider.Complete(ctx, buildSparringInput(businessCase, turns), s.opts)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(completion.Text), nil
}
