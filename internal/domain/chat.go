package domain

import "time"

// Role identifies who authored a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single transcript entry. Messages are never mutated once
// appended; insertion order is display order.
//
// HTML holds the rendered form of assistant content and is empty for user
// messages, which are always shown as escaped text.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	HTML      string    `json:"html,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatReply is the backend's answer to one chat turn.
type ChatReply struct {
	ThreadID string
	Messages []string
}

// Member is the locally stored login record.
type Member struct {
	Cedula    string    `json:"cedula"`
	Name      string    `json:"name"`
	LoginTime time.Time `json:"loginTime"`
}
