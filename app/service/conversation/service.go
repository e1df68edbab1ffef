package conversation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

// Service keeps every conversation in memory for the process lifetime.
type Service struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	now           func() time.Time
}

func New(_ *do.Injector) (*Service, error) {
	return NewStore(time.Now), nil
}

func NewStore(now func() time.Time) *Service {
	return &Service{
		conversations: make(map[string]*Conversation),
		now:           now,
	}
}

// Append stores msg, creating the conversation on first sight.
// Outgoing messages never replace the display name.
func (s *Service) Append(id string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		displayName := msg.Sender
		if msg.FromMe || displayName == "" {
			displayName = id
		}

		conv = &Conversation{
			ID:          id,
			DisplayName: displayName,
			Messages:    []Message{},
		}
		s.conversations[id] = conv

		slog.Debug("Conversation created", "conversation_id", id, "display_name", displayName)
	}

	conv.Messages = append(conv.Messages, msg)
	if !msg.FromMe && msg.Sender != "" {
		conv.DisplayName = msg.Sender
	}
	conv.LastUpdate = s.now()
}

// SetSummary replaces the summary of an existing conversation.
func (s *Service) SetSummary(id, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		slog.Warn("Summary for unknown conversation ignored", "conversation_id", id)
		return
	}

	conv.Summary = summary
	conv.LastUpdate = s.now()
}

func (s *Service) Get(id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return Conversation{}, false
	}

	return conv.clone(), true
}

// Summary returns the current summary; ok is false for unknown conversations.
func (s *Service) Summary(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return "", false
	}

	return conv.Summary, true
}

// RecentWindow returns up to n of the latest messages, oldest first.
func (s *Service) RecentWindow(id string, n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return []Message{}
	}

	return tail(conv.Messages, n)
}

// Snapshot returns copies of all conversations, most recently updated first.
func (s *Service) Snapshot() []Conversation {
	s.mu.RLock()
	result := make([]Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		result = append(result, conv.clone())
	}
	s.mu.RUnlock()

	return pie.SortUsing(result, func(a, b Conversation) bool {
		if a.LastUpdate.Equal(b.LastUpdate) {
			return a.ID < b.ID
		}

		return a.LastUpdate.After(b.LastUpdate)
	})
}

func (s *Service) Summaries() []SummaryRecord {
	return pie.Map(s.Snapshot(), func(c Conversation) SummaryRecord {
		return c.record()
	})
}

func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.conversations)
}
