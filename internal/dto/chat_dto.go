package dto

import "time"

type ChatRequest struct {
	Question string `json:"question" validate:"required,max=8000"`
	Stream   bool   `json:"stream"`
}

type ChatResponse struct {
	Answer    string   `json:"answer"`
	Mode      string   `json:"mode"`
	Files     []string `json:"files"`
	Truncated bool     `json:"truncated,omitempty"`
}

type ChatStreamChunk struct {
	Type    string `json:"type"` // "chunk", "done" or "error"
	Content string `json:"content,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Code    int    `json:"code,omitempty"`
}

type ConversationTurnResponse struct {
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
}

type SessionMemoryResponse struct {
	Session        string                     `json:"session"`
	UserInfo       map[string]string          `json:"user_info"`
	Preferences    map[string]string          `json:"preferences"`
	Interests      []string                   `json:"interests"`
	ImportantFacts []string                   `json:"important_facts"`
	LastUpdated    *time.Time                 `json:"last_updated"`
	History        []ConversationTurnResponse `json:"history"`
}

type ClearSessionResponse struct {
	Session string `json:"session"`
}
