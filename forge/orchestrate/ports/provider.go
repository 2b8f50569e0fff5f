package ports

import (
	"context"
	"fmt"
)

// ChatMessage represents a single role/content message sent to the completion provider.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// PromptInput aggregates everything the provider needs to produce a completion.
type PromptInput struct {
	System   string        // system/developer instructions
	Messages []ChatMessage // ordered chat turns following the system message
}

// Options controls sampling and limits for a single provider call.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Usage captures token accounting for cost/telemetry.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the provider's response.
type Completion struct {
	Text  string
	Usage *Usage // optional usage information
}

// ProviderError reports a provider call that failed on every retry attempt,
// either with a non-success status or a transport error.
type ProviderError struct {
	Status   int // last HTTP status, 0 for transport failures
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("completion provider returned status %d after %d attempts: %v", e.Status, e.Attempts, e.Err)
	}
	return fmt.Sprintf("completion provider unreachable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// CompletionProvider is the abstraction for the text-completion backend.
// Implementations own transport-level retry; callers own interpretation of the
// returned text, including any structured-output parsing.
type CompletionProvider interface {
	Complete(ctx context.Context, in PromptInput, opts Options) (Completion, error)
}
