package pipeline

import (
	"fmt"
	"strings"

	"github.com/poiesic/learnbot/core"
)

// ApologyMessage is the reply used when the final generation call fails.
const ApologyMessage = "Sorry, an error occurred while processing your message. Please try again."

const errorResponsePrefix = "Sorry, an error occurred while processing your message"

const (
	noContextMarker = "No relevant context available."
	contextPrefix   = "Available context: "
)

const classificationPrompt = `You are an intent classifier.

IMPORTANT: Reply with exactly ONE of the following words, with no punctuation or extra text:
- fact (the user shares a piece of factual information)
- question (the user asks a question)
- preference (the user states a preference or taste)
- feedback (the user gives feedback)

Examples:
Input: "The Earth is round"
Output: fact

Input: "What is the capital of Brazil?"
Output: question

Input: "I prefer detailed explanations"
Output: preference

Input: "I really liked your answer"
Output: feedback`

const validationPromptTemplate = `You are an assistant that validates factual statements.

Carefully analyze the user's input and decide whether it is a factual statement that can be verified.

Reply with only:
- true: if it is a clear, verifiable fact
- false: if it is an opinion, a preference, or cannot be verified

Examples of valid facts:
- "Water boils at 100°C at sea level"
- "Brazil is the largest country in South America"

Examples of non-facts:
- "I love chocolate"
- "Blue is the most beautiful color"

Judge only verifiability, not truth. A checkable claim that happens to be wrong is still true here.

Known context:
%s`

const extractionPrompt = `You are a preference analyzer.

IMPORTANT: Your reply must be EXACTLY one valid JSON object, with no extra text.

Analyze the message and identify preferences about:
- tone: formal or casual
- verbosity: concise, balanced or detailed
- formality: formal or informal

If no preference is identified, return {}.
If a preference is identified, include ONLY the preferences mentioned.

Examples:

Input: "I prefer a more formal tone"
Output: {"tone": "formal"}

Input: "I like detailed explanations"
Output: {"verbosity": "detailed"}

Input: "I want formal and concise answers"
Output: {"tone": "formal", "verbosity": "concise"}

Input: "I like mathematics"
Output: {}`

const responsePromptTemplate = `You are a friendly assistant that learns from conversations.

Analyze the user's input and the context provided. If the context holds relevant information,
use it to enrich your answer.

User preferences:
%s

Adapt your tone and style to the user's preferences.

Response guidelines:
%s

Keep your answers concise and relevant.
Use natural, friendly language.`

var intentGuidance = map[core.Intent]string{
	core.IntentFact:       "- For a fact: confirm whether it was validated and stored",
	core.IntentQuestion:   "- For a question: use the context to give an accurate answer",
	core.IntentPreference: "- For a preference: confirm the changes",
	core.IntentFeedback:   "- For feedback: thank the user and explain how it helps improve",
}

// formatContext renders retrieved documents as a bulleted list.
// It returns "" when docs is empty.
func formatContext(docs []core.Document) string {
	if len(docs) == 0 {
		return ""
	}
	lines := make([]string, 0, len(docs))
	for _, doc := range docs {
		lines = append(lines, "- "+doc.Content)
	}
	return strings.Join(lines, "\n")
}

func formatPreferences(prefs core.Preferences) string {
	lines := make([]string, 0, len(core.PreferenceKeys))
	for _, key := range core.PreferenceKeys {
		lines = append(lines, fmt.Sprintf("- %s: %s", key, prefs[key]))
	}
	return strings.Join(lines, "\n")
}

func buildValidationPrompt(docs []core.Document) string {
	context := formatContext(docs)
	if context == "" {
		context = noContextMarker
	}
	return fmt.Sprintf(validationPromptTemplate, context)
}

// buildResponsePrompt lists the guidance for the turn's intent first. An
// unclassified turn gets every guideline.
func buildResponsePrompt(prefs core.Preferences, intent core.Intent) string {
	guidance := make([]string, 0, len(core.Intents))
	if g, ok := intentGuidance[intent]; ok {
		guidance = append(guidance, g)
	}
	for _, i := range core.Intents {
		if i != intent {
			guidance = append(guidance, intentGuidance[i])
		}
	}
	return fmt.Sprintf(responsePromptTemplate, formatPreferences(prefs), strings.Join(guidance, "\n"))
}

func buildContextMessage(docs []core.Document) string {
	context := formatContext(docs)
	if context == "" {
		return noContextMarker
	}
	return contextPrefix + context
}
