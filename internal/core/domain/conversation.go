package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SourceRef points at a stored document that grounded an answer.
type SourceRef struct {
	DocumentID string `json:"id"`
	Filename   string `json:"filename"`
}

type ConversationTurn struct {
	Role      Role        `json:"role"`
	Text      string      `json:"text"`
	Sources   []SourceRef `json:"sources,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type ChatResult struct {
	Response string      `json:"response"`
	Sources  []SourceRef `json:"sources"`
}

// LLMHealth reports inference backend reachability. It is a state, not an
// error: an unreachable backend yields Connected=false.
type LLMHealth struct {
	Connected       bool     `json:"connected"`
	Model           string   `json:"model"`
	AvailableModels []string `json:"available_models,omitempty"`
}
