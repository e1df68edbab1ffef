package conversation

import (
	"time"
)

type Kind string

const (
	KindText  Kind = "text"
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

// Label is the human readable name used in prompts.
func (k Kind) Label() string {
	switch k {
	case KindAudio:
		return "Audio"
	case KindImage:
		return "Image"
	default:
		return "Text"
	}
}

type Message struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
	FromMe    bool      `json:"fromMe"`
}

type Conversation struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Messages    []Message `json:"messages"`
	Summary     string    `json:"summary"`
	LastUpdate  time.Time `json:"lastUpdate"`
}

// SummaryRecord is the flattened view of a conversation served to lightweight clients.
type SummaryRecord struct {
	ConversationID string    `json:"conversationId"`
	DisplayName    string    `json:"displayName"`
	Summary        string    `json:"summary"`
	MessageCount   int       `json:"messageCount"`
	LastMessage    *Message  `json:"lastMessage,omitempty"`
	LastUpdate     time.Time `json:"lastUpdate"`
}

func (c *Conversation) clone() Conversation {
	result := *c
	result.Messages = make([]Message, len(c.Messages))
	copy(result.Messages, c.Messages)

	return result
}

func (c *Conversation) record() SummaryRecord {
	result := SummaryRecord{
		ConversationID: c.ID,
		DisplayName:    c.DisplayName,
		Summary:        c.Summary,
		MessageCount:   len(c.Messages),
		LastUpdate:     c.LastUpdate,
	}

	if len(c.Messages) > 0 {
		last := c.Messages[len(c.Messages)-1]
		result.LastMessage = &last
	}

	return result
}
