package chat

import (
	"sync"
	"time"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

// Greeting opens every support conversation.
const Greeting = "Hello! Welcome to Supermarket AI Support. I can help you find products, suggest recipes, or answer questions about our store hours. How can I assist you today?"

// Message is one rendered chat bubble.
type Message struct {
	ID        string        `json:"id"`
	Role      analysis.Role `json:"role"`
	Text      string        `json:"text"`
	Timestamp time.Time     `json:"timestamp"`
	// Failed marks the explicit fallback appended when no reply arrived.
	Failed bool `json:"failed,omitempty"`
}

// Session is an append-only conversation. Messages are never reordered.
type Session struct {
	ID string

	mu       sync.RWMutex
	messages []Message
}

// NewSession starts a conversation seeded with the canned greeting.
func NewSession(id string, now time.Time) *Session {
	s := &Session{ID: id}
	s.messages = append(s.messages, Message{
		ID:        id + "-0",
		Role:      analysis.RoleAssistant,
		Text:      Greeting,
		Timestamp: now,
	})
	return s
}

// Append adds a message at the end.
func (s *Session) Append(m Message) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
}

// Messages returns a copy in append order.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len is the number of messages.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// History converts the messages into replayable turns. Failed fallbacks are
// not replayed; the model never said them.
func (s *Session) History() []analysis.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]analysis.Turn, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Failed {
			continue
		}
		turns = append(turns, analysis.Turn{Role: m.Role, Text: m.Text})
	}
	return turns
}
