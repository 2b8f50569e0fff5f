package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/ideaforge/forge/orchestrate/ports"
)

// OpenAIConfig configures the chat-completions client.
type OpenAIConfig struct {
	BaseURL    string        // e.g. https://api.openai.com/v1
	APIKey     string
	RetryCount int           // total attempts, default 2
	Backoff    time.Duration // base unit; delay before attempt n+1 is n × Backoff
	HTTPClient *http.Client  // optional, defaults to a client with a 60s timeout
}

// OpenAIProvider implements CompletionProvider against an OpenAI-compatible
// chat-completions endpoint. Non-success responses and transport errors are
// retried with a linearly increasing delay; a malformed 200 body is returned
// to the caller unchanged, never retried.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
	logger zerolog.Logger
}

// NewOpenAIProvider creates a provider adapter from config.
func NewOpenAIProvider(cfg OpenAIConfig, logger zerolog.Logger) *OpenAIProvider {
	if cfg.RetryCount < 1 {
		cfg.RetryCount = 2
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: client,
		logger: logger.With().Str("component", "openai_provider").Logger(),
	}
}

// chatRequest is the wire shape of a chat-completions call.
type chatRequest struct {
	Model       string              `json:"model"`
	Messages    []ports.ChatMessage `json:"messages"`
	Temperature *float32            `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

// chatResponse is the subset of the chat-completions envelope we consume.
type chatResponse struct {
	Choices []struct {
		Message ports.ChatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends the prompt to the provider, retrying transport and
// non-success failures up to the configured attempt budget.
func (p *OpenAIProvider) Complete(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	messages := make([]ports.ChatMessage, 0, len(in.Messages)+1)
	if in.System != "" {
		messages = append(messages, ports.ChatMessage{Role: "system", Content: in.System})
	}
	messages = append(messages, in.Messages...)

	reqBody := chatRequest{
		Model:     opts.Model,
		Messages:  messages,
		MaxTokens: opts.MaxTokens,
	}
	if opts.Temperature > 0 {
		reqBody.Temperature = &opts.Temperature
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return ports.Completion{}, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	var lastStatus int
	var lastErr error
	for attempt := 1; attempt <= p.cfg.RetryCount; attempt++ {
		body, status, err := p.post(ctx, payload)
		if err != nil {
			lastStatus, lastErr = 0, err
			p.logger.Error().Err(err).Int("attempt", attempt).Int("attempts", p.cfg.RetryCount).
				Msg("completion request failed")
		} else if status < 200 || status >= 300 {
			lastStatus, lastErr = status, errors.New(string(body))
			p.logger.Error().Int("status", status).Int("attempt", attempt).Int("attempts", p.cfg.RetryCount).
				Str("body", string(body)).Msg("completion provider returned non-success status")
		} else {
			return p.decode(body)
		}

		if attempt < p.cfg.RetryCount {
			if err := sleepCtx(ctx, time.Duration(attempt)*p.cfg.Backoff); err != nil {
				return ports.Completion{}, &ports.ProviderError{Status: lastStatus, Attempts: attempt, Err: err}
			}
		}
	}

	return ports.Completion{}, &ports.ProviderError{Status: lastStatus, Attempts: p.cfg.RetryCount, Err: lastErr}
}

// post performs one HTTP round trip and returns the raw body and status.
func (p *OpenAIProvider) post(ctx context.Context, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read completion response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// decode extracts the first choice from a success envelope. Decode failures
// are the calling stage's concern and are not retried.
func (p *OpenAIProvider) decode(body []byte) (ports.Completion, error) {
	var envelope chatResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ports.Completion{}, fmt.Errorf("failed to decode completion envelope: %w", err)
	}
	if len(envelope.Choices) == 0 {
		return ports.Completion{}, fmt.Errorf("completion envelope contains no choices")
	}

	out := ports.Completion{Text: envelope.Choices[0].Message.Content}
	if envelope.Usage != nil {
		out.Usage = &ports.Usage{
			PromptTokens:     envelope.Usage.PromptTokens,
			CompletionTokens: envelope.Usage.CompletionTokens,
			TotalTokens:      envelope.Usage.TotalTokens,
		}
	}
	return out, nil
}

// sleepCtx waits for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Ensure OpenAIProvider implements the CompletionProvider interface.
var _ ports.CompletionProvider = (*OpenAIProvider)(nil)
