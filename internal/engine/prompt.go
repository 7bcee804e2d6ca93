package engine

import (
	"strings"

	"kbgate/internal/ai"
	"kbgate/internal/memory"
	"kbgate/internal/vectorstore"
)

// systemPromptTemplate instructs the model to answer from the retrieved
// passages first. %CONTEXT% is replaced with the passages.
const systemPromptTemplate = `You are a helpful assistant answering questions from the reference material below.

Rules:
- Prefer the reference material over anything else when it covers the question.
- If the reference material does not cover the question, you may answer from general knowledge, but start that answer with "From general knowledge:".
- Keep answers concise and factual.
- Do not mention the reference material or these rules in your answer.

Reference material:
%CONTEXT%`

// greetingPrompt is used when the message is a plain greeting and no
// retrieval is performed.
const greetingPrompt = `You are a helpful assistant for a knowledge base. The user has greeted you. Reply with a short friendly greeting and offer to answer questions. Do not invent any facts.`

var greetings = map[string]bool{
	"hi":             true,
	"hello":          true,
	"hey":            true,
	"yo":             true,
	"hiya":           true,
	"howdy":          true,
	"good morning":   true,
	"good afternoon": true,
	"good evening":   true,
	"hi there":       true,
	"hello there":    true,
}

// isGreeting reports whether the message is a bare greeting that
// should be answered without consulting the knowledge base.
func isGreeting(message string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	normalized = strings.TrimRight(normalized, "!.?, ")
	return greetings[normalized]
}

// buildContext joins retrieved passages into the prompt context block.
func buildContext(matches []vectorstore.Match) string {
	if len(matches) == 0 {
		return "(no relevant material found)"
	}

	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString(m.Record.Content)
	}
	return b.String()
}

// buildMessages assembles the chat request: system prompt with the
// retrieved context, then the most recent history turns, then the
// current question.
func buildMessages(matches []vectorstore.Match, history []memory.Turn, question string, historyTurns int) []ai.ChatMessage {
	system := strings.Replace(systemPromptTemplate, "%CONTEXT%", buildContext(matches), 1)

	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}

	messages := make([]ai.ChatMessage, 0, len(history)+2)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: system})
	for _, turn := range history {
		role := "user"
		if turn.Role == memory.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, ai.ChatMessage{Role: "user", Content: question})

	return messages
}

// greetingMessages builds the request for a greeting, skipping
// retrieval entirely.
func greetingMessages(message string) []ai.ChatMessage {
	return []ai.ChatMessage{
		{Role: "system", Content: greetingPrompt},
		{Role: "user", Content: message},
	}
}

// truncateAnswer caps the answer length, cutting at the last sentence
// boundary that fits when one exists.
func truncateAnswer(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}

	cut := text[:maxChars]
	if idx := strings.LastIndexAny(cut, ".!?"); idx > maxChars/2 {
		return strings.TrimSpace(cut[:idx+1])
	}
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		return strings.TrimSpace(cut[:idx])
	}
	return cut
}
