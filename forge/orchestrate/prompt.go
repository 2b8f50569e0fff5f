package orchestrate

import (
	"fmt"

	ports "github.com/ZanzyTHEbar/ideaforge/forge/orchestrate/ports"
)

// decisionSystemPrompt instructs the provider to classify the latest turn and
// answer with nothing but the decision JSON object.
const decisionSystemPrompt = `You are an AI assistant helping to develop Python code. You must ALWAYS respond with a JSON object in this exact format:

{
  "needsCode": boolean,
  "userResponse": string (your response to the user's request),
  "codeInstructions": string (only if needsCode is true)
}

DO NOT include any other text or markdown formatting. ONLY return the JSON object.

Guidelines for your responses in userResponse:
- Start with phrases like "I'll help you..." or "Let me explain..."
- For code changes: "I'll modify/update/change the code to..."
- For explanations: "The code works by..." or "This part of the code..."
- Keep it focused on what YOU will do or explain

Example responses:
{
  "needsCode": true,
  "userResponse": "I'll update the code to add error handling for the API calls",
  "codeInstructions": "Add try-except blocks around API calls"
}

{
  "needsCode": false,
  "userResponse": "Let me explain how the data processing works. The process_data function takes raw candlestick data and..."
}`

// generationSystemPrompt frames the provider as a Python developer producing a
// complete replacement file, with the current content inlined for context.
const generationSystemPrompt = `You are an expert Python developer. Generate or modify the main.py file.

Current file content:
%s

Your coding style is:
- Following PEP 8 guidelines
- Writing clean, concise, efficient, and modular code and extract common functionality into functions
- Use common and understandable naming conventions
- Write modular code

Return ONLY the complete Python code, no explanations or markdown.`

// sparringSystemPrompt frames the provider as a business coach for the
// brainstorming chat.
const sparringSystemPrompt = `You are a business coach helping brainstorm and refine ideas.

The business case is: %s

Format your responses as follows:
- Use bullet points for lists
- Use '**bold**' markdown for important concepts
- Break paragraphs into easily readable chunks
- Use clear headings with '###' when organizing different topics
- Keep responses concise and focused
- Use '>' for quotes or highlighting key insights

Provide constructive feedback, ask thought-provoking questions, and help develop the idea further.`

// buildDecisionInput assembles the classification prompt. Only the latest turn
// is embedded; the rest of the context comes from the business case and the
// current artifact content.
func buildDecisionInput(businessCase, currentContent, latestTurn string) ports.PromptInput {
	return ports.PromptInput{
		System: decisionSystemPrompt,
		Messages: []ports.ChatMessage{{
			Role:    "user",
			Content: fmt.Sprintf("Business Case: %s\nExisting Code:\n%s\nLatest Message: %s", businessCase, currentContent, latestTurn),
		}},
	}
}

// buildGenerationInput assembles the code-generation prompt from the decision
// stage's instructions and the artifact's current content.
func buildGenerationInput(instructions, currentContent string) ports.PromptInput {
	if currentContent == "" {
		currentContent = "No existing code"
	}
	return ports.PromptInput{
		System:   fmt.Sprintf(generationSystemPrompt, currentContent),
		Messages: []ports.ChatMessage{{Role: "user", Content: instructions}},
	}
}

// buildSparringInput assembles the brainstorming prompt from the business case
// and the full turn history.
func buildSparringInput(businessCase string, turns []ports.ChatMessage) ports.PromptInput {
	return ports.PromptInput{
		System:   fmt.Sprintf(sparringSystemPrompt, businessCase),
		Messages: turns,
	}
}
