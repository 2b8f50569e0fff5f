package orchestrate

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	ports "github.com/ZanzyTHEbar/ideaforge/forge/orchestrate/ports"
)

// decisionSchema is enforced at the parse boundary before the payload is
// decoded. The needsCode/codeInstructions dependency is checked separately
// because it spans two fields.
const decisionSchema = `{
	"type": "object",
	"required": ["needsCode", "userResponse"],
	"properties": {
		"needsCode": {"type": "boolean"},
		"userResponse": {"type": "string", "minLength": 1},
		"codeInstructions": {"type": "string"}
	}
}`

// CodeRequest carries the generation instructions attached to a decision.
type CodeRequest struct {
	Instructions string
}

// Decision is the classification outcome for one conversational turn.
// Code is nil when the turn requires no artifact change; when non-nil its
// Instructions are guaranteed non-empty.
type Decision struct {
	Reply string
	Code  *CodeRequest
}

// DecisionStage classifies a turn as requiring code changes or not.
type DecisionStage struct {
	provider ports.CompletionProvider
	opts     ports.Options
	schema   *gojsonschema.Schema
}

// NewDecisionStage creates a decision stage bound to a provider.
func NewDecisionStage(provider ports.CompletionProvider, opts ports.Options) *DecisionStage {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(decisionSchema))
	if err != nil {
		// The schema is a compile-time constant; failing to parse it is a bug.
		panic("orchestrate: invalid decision schema: " + err.Error())
	}
	return &DecisionStage{provider: provider, opts: opts, schema: schema}
}

// Decide invokes the provider once and parses the strict decision contract.
// Provider failures propagate unchanged; contract violations surface as a
// DecisionParseError and are never retried.
func (s *DecisionStage) Decide(ctx context.Context, businessCase, currentContent string, turns []ports.ChatMessage) (Decision, error) {
	latest := turns[len(turns)-1].Content

	completion, err := s.provider.Complete(ctx, buildDecisionInput(businessCase, currentContent, latest), s.opts)
	if err != nil {
		return Decision{}, err
	}

	return s.parse(completion.Text)
}

// parse strips fence markup, validates against the decision schema, and
// decodes into the tagged variant.
func (s *DecisionStage) parse(raw string) (Decision, error) {
	cleaned := stripCodeFences(raw)

	result, err := s.schema.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return Decision{}, &DecisionParseError{Reason: "payload is not valid JSON", Raw: cleaned, Err: err}
	}
	if !result.Valid() {
		var violations []string
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}
		return Decision{}, &DecisionParseError{Reason: strings.Join(violations, "; "), Raw: cleaned}
	}

	var wire struct {
		NeedsCode        bool   `json:"needsCode"`
		UserResponse     string `json:"userResponse"`
		CodeInstructions string `json:"codeInstructions"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return Decision{}, &DecisionParseError{Reason: "payload failed to decode", Raw: cleaned, Err: err}
	}

	decision := Decision{Reply: wire.UserResponse}
	if wire.NeedsCode {
		instructions := strings.TrimSpace(wire.CodeInstructions)
		if instructions == "" {
			return Decision{}, &DecisionParseError{Reason: "needsCode is true but codeInstructions is empty", Raw: cleaned}
		}
		decision.Code = &CodeRequest{Instructions: instructions}
	}
	return decision, nil
}

// stripCodeFences removes surrounding markdown fence markup the provider may
// have wrapped around the JSON object.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
