package orchestrate

import (
	"strings"

	ports "github.com/ZanzyTHEbar/ideaforge/forge/orchestrate/ports"
)

// SanitizeTurns normalizes a conversation turn list before it is embedded in a
// classification prompt: embedded newlines collapse to single spaces and
// surrounding whitespace is trimmed. Pure and total; sanitizing an already
// sanitized sequence yields the same sequence.
func SanitizeTurns(turns []ports.ChatMessage) []ports.ChatMessage {
	out := make([]ports.ChatMessage, len(turns))
	for i, turn := range turns {
		out[i] = ports.ChatMessage{
			Role:    turn.Role,
			Content: strings.TrimSpace(strings.ReplaceAll(turn.Content, "\n", " ")),
		}
	}
	return out
}
