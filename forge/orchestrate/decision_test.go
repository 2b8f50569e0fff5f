package orchestrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "github.com/ZanzyTHEbar/ideaforge/forge/orchestrate/ports"
)

// StubProvider implements CompletionProvider for testing.
type StubProvider struct {
	completeFunc func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error)
	inputs       []ports.PromptInput
}

func (p *StubProvider) Complete(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	p.inputs = append(p.inputs, in)
	if p.completeFunc != nil {
		return p.completeFunc(ctx, in, opts)
	}
	return ports.Completion{Text: `{"needsCode": false, "userResponse": "stub"}`}, nil
}

var _ ports.CompletionProvider = (*StubProvider)(nil)

func fixedReply(text string) *StubProvider {
	return &StubProvider{
		completeFunc: func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
			return ports.Completion{Text: text}, nil
		},
	}
}

func decide(t *testing.T, provider *StubProvider) (Decision, error) {
	t.Helper()
	stage := NewDecisionStage(provider, ports.Options{Model: "test-model"})
	return stage.Decide(context.Background(), "sell socks online", "", []ports.ChatMessage{
		{Role: "user", Content: "build me a price tracker"},
	})
}

func TestDecisionStage_NoCodeNeeded(t *testing.T) {
	decision, err := decide(t, fixedReply(`{"needsCode": false, "userResponse": "Let me explain how it works."}`))

	require.NoError(t, err)
	assert.Equal(t, "Let me explain how it works.", decision.Reply)
	assert.Nil(t, decision.Code)
}

func TestDecisionStage_NeedsCode(t *testing.T) {
	decision, err := decide(t, fixedReply(`{"needsCode": true, "userResponse": "I'll add error handling", "codeInstructions": "Wrap API calls in try-except"}`))

	require.NoError(t, err)
	assert.Equal(t, "I'll add error handling", decision.Reply)
	require.NotNil(t, decision.Code)
	assert.Equal(t, "Wrap API calls in try-except", decision.Code.Instructions)
}

func TestDecisionStage_StripsFencedJSON(t *testing.T) {
	decision, err := decide(t, fixedReply("```json\n{\"needsCode\": false, \"userResponse\": \"fenced\"}\n```"))

	require.NoError(t, err)
	assert.Equal(t, "fenced", decision.Reply)
}

func TestDecisionStage_MissingInstructionsRejected(t *testing.T) {
	_, err := decide(t, fixedReply(`{"needsCode": true, "userResponse": "I'll change the code"}`))

	var parseErr *DecisionParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Reason, "codeInstructions")
}

func TestDecisionStage_BlankInstructionsRejected(t *testing.T) {
	_, err := decide(t, fixedReply(`{"needsCode": true, "userResponse": "sure", "codeInstructions": "   "}`))

	var parseErr *DecisionParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestDecisionStage_InvalidJSONRejected(t *testing.T) {
	_, err := decide(t, fixedReply("Sure, I'll help you with that!"))

	var parseErr *DecisionParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestDecisionStage_WrongTypesRejected(t *testing.T) {
	_, err := decide(t, fixedReply(`{"needsCode": "yes", "userResponse": "hi"}`))

	var parseErr *DecisionParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestDecisionStage_ExtraKeysTolerated(t *testing.T) {
	decision, err := decide(t, fixedReply(`{"needsCode": false, "userResponse": "ok", "confidence": 0.9}`))

	require.NoError(t, err)
	assert.Equal(t, "ok", decision.Reply)
}

func TestDecisionStage_ProviderErrorPropagates(t *testing.T) {
	providerErr := &ports.ProviderError{Attempts: 2, Err: errors.New("boom")}
	provider := &StubProvider{
		completeFunc: func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
			return ports.Completion{}, providerErr
		},
	}

	_, err := decide(t, provider)

	var got *ports.ProviderError
	require.ErrorAs(t, err, &got)
	var parseErr *DecisionParseError
	assert.False(t, errors.As(err, &parseErr))
}

func TestDecisionStage_PromptEmbedsContext(t *testing.T) {
	provider := fixedReply(`{"needsCode": false, "userResponse": "ok"}`)
	stage := NewDecisionStage(provider, ports.Options{})

	_, err := stage.Decide(context.Background(), "sell socks", "print('v1')", []ports.ChatMessage{
		{Role: "user", Content: "first"},
		{Role: "user", Content: "latest ask"},
	})

	require.NoError(t, err)
	require.Len(t, provider.inputs, 1)
	content := provider.inputs[0].Messages[0].Content
	assert.Contains(t, content, "Business Case: sell socks")
	assert.Contains(t, content, "Existing Code:\nprint('v1')")
	assert.Contains(t, content, "Latest Message: latest ask")
	assert.NotContains(t, content, "first")
}
