// Package prompts assembles the coaching prompts sent to model providers.
package prompts

import (
	_ "embed"
	"strings"
)

//go:embed system_coach.txt
var baseSystemPrompt string

// Base returns the built-in coaching system prompt.
func Base() string {
	return strings.TrimSpace(baseSystemPrompt)
}

// contextBlock wraps the persona and optional company context in delimited
// sections the way the providers see them.
func contextBlock(persona, company string) string {
	var b strings.Builder
	b.WriteString("--- CANDIDATE CONTEXT ---\n")
	b.WriteString(strings.TrimSpace(persona))
	b.WriteString("\n--- END OF CANDIDATE CONTEXT ---\n")
	if trimmed := strings.TrimSpace(company); trimmed != "" {
		b.WriteString("\n--- COMPANY CONTEXT ---\n")
		b.WriteString(trimmed)
		b.WriteString("\n--- END OF COMPANY CONTEXT ---\n")
	}
	return b.String()
}

// Answer builds the prompt that asks the model to answer an interview
// question in character.
func Answer(persona, company, question string) string {
	var b strings.Builder
	b.WriteString(Base())
	b.WriteString("\n\n")
	b.WriteString(contextBlock(persona, company))
	b.WriteString("\nNow, answer the following question:\nQUESTION: ")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}

// Evaluate builds the prompt that asks the model to critique the user's own
// answer against the most recently asked question.
func Evaluate(persona, company, question, answer string) string {
	var b strings.Builder
	b.WriteString(Base())
	b.WriteString("\n\n")
	b.WriteString(contextBlock(persona, company))
	b.WriteString("\nThe candidate was asked the following interview question:\nQUESTION: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nThe candidate gave this answer:\nANSWER: ")
	b.WriteString(strings.TrimSpace(answer))
	b.WriteString("\n\nCritique the answer as an interview coach. Point out what works, what is missing, and how to strengthen it. Do not rewrite the answer wholesale; give actionable feedback.")
	return b.String()
}
