// Package embedded provides access to the prompt templates compiled into PagePilot.
package embedded

import _ "embed"

// ReflectionPrompt asks the model to evaluate the latest answer of a conversation.
//
//go:embed prompts/reflection.tmpl
var ReflectionPrompt string

// RevisePrompt asks the model to rewrite the latest answer following an evaluation.
//
//go:embed prompts/revise.tmpl
var RevisePrompt string

// SuggestPrompt asks the model for follow-up questions.
//
//go:embed prompts/suggest.tmpl
var SuggestPrompt string

// GoalPrompt asks the model to state the goal of the latest user message.
//
//go:embed prompts/goal.tmpl
var GoalPrompt string

// PageSystemPrompt is the system prompt of agents working on a loaded page.
//
//go:embed prompts/page_system.tmpl
var PageSystemPrompt string

// TranslatePrompt asks the model to translate a text.
//
//go:embed prompts/translate.tmpl
var TranslatePrompt string
