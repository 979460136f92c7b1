// Package chat runs customer support conversations against the model.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/retailsight/internal/application"
	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
	"github.com/bryanwahyu/retailsight/internal/domain/chat"
	"github.com/bryanwahyu/retailsight/internal/infra/ai/prompt"
)

// FallbackReply is appended when no reply arrived, so a sent message is
// never left without an answer.
const FallbackReply = "I couldn't get a response right now. Please try again."

// Conversor runs one chat completion with history.
type Conversor interface {
	Converse(ctx context.Context, call analysis.Call) (analysis.Reply, error)
}

// DefaultMaxSessions bounds the sessions held by a controller.
const DefaultMaxSessions = 1000

// Controller owns the sessions of this process. Sessions live in memory only;
// past the cap the least recently used idle session is evicted.
type Controller struct {
	svc         Conversor
	clock       application.Clock
	log         *zap.Logger
	newID       func() string
	maxSessions int

	mu       sync.Mutex
	sessions map[string]*chat.Session
	lastUsed map[string]time.Time
	inflight map[string]bool
}

// Option tunes a Controller.
type Option func(*Controller)

// WithMaxSessions caps the number of live sessions. n <= 0 keeps the default.
func WithMaxSessions(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxSessions = n
		}
	}
}

func NewController(svc Conversor, clock application.Clock, log *zap.Logger, opts ...Option) *Controller {
	if clock == nil {
		clock = application.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		svc:         svc,
		clock:       clock,
		log:         log.Named("chat"),
		newID:       uuid.NewString,
		maxSessions: DefaultMaxSessions,
		sessions:    make(map[string]*chat.Session),
		lastUsed:    make(map[string]time.Time),
		inflight:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewSession starts a conversation seeded with the greeting.
func (c *Controller) NewSession() *chat.Session {
	now := c.clock.Now()
	s := chat.NewSession(c.newID(), now)
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.sessions) >= c.maxSessions {
		if !c.evictLocked() {
			break
		}
	}
	c.sessions[s.ID] = s
	c.lastUsed[s.ID] = now
	return s
}

// Session looks up a conversation and marks it used.
func (c *Controller) Session(id string) (*chat.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if ok {
		c.lastUsed[id] = c.clock.Now()
	}
	return s, ok
}

// Len is the number of live sessions.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// evictLocked drops the least recently used session that is not waiting for
// a reply. It reports false when every session is busy.
func (c *Controller) evictLocked() bool {
	var (
		oldest string
		at     time.Time
	)
	for id, t := range c.lastUsed {
		if c.inflight[id] {
			continue
		}
		if oldest == "" || t.Before(at) || (t.Equal(at) && id < oldest) {
			oldest, at = id, t
		}
	}
	if oldest == "" {
		return false
	}
	delete(c.sessions, oldest)
	delete(c.lastUsed, oldest)
	c.log.Debug("session evicted", zap.String("session", oldest))
	return true
}

// SendTurn appends the user message, asks the model with the prior history
// and appends the reply. On failure the fallback reply is appended, marked
// failed, and the error is returned.
func (c *Controller) SendTurn(ctx context.Context, s *chat.Session, text string) (*chat.Session, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s, analysis.Errorf(analysis.ErrConfiguration, "send turn", "message is empty")
	}
	if !c.acquire(s.ID) {
		return s, analysis.Errorf(analysis.ErrBusy, "send turn", "session %s is waiting for a reply", s.ID)
	}
	defer c.release(s.ID)

	history := s.History()
	s.Append(chat.Message{ID: c.newID(), Role: analysis.RoleUser, Text: text, Timestamp: c.clock.Now()})

	reply, err := c.svc.Converse(ctx, analysis.Call{
		Kind:    analysis.KindCustomerSupport,
		System:  prompt.SystemInstruction(),
		History: history,
		Parts:   []analysis.Part{analysis.TextPart(text)},
	})
	if err == nil && strings.TrimSpace(reply.Text) == "" {
		err = analysis.Errorf(analysis.ErrModelRefusal, "send turn", "empty reply")
	}
	if err != nil {
		c.log.Error("chat turn failed, appending fallback",
			zap.String("session", s.ID),
			zap.Int("messages", s.Len()),
			zap.Error(err))
		s.Append(chat.Message{ID: c.newID(), Role: analysis.RoleAssistant, Text: FallbackReply, Timestamp: c.clock.Now(), Failed: true})
		return s, err
	}

	s.Append(chat.Message{ID: c.newID(), Role: analysis.RoleAssistant, Text: reply.Text, Timestamp: c.clock.Now()})
	c.log.Debug("chat turn", zap.String("session", s.ID), zap.Int64("total_tokens", reply.Usage.TotalTokens))
	return s, nil
}

func (c *Controller) acquire(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[id] {
		return false
	}
	c.inflight[id] = true
	if _, ok := c.sessions[id]; ok {
		c.lastUsed[id] = c.clock.Now()
	}
	return true
}

func (c *Controller) release(id string) {
	c.mu.Lock()
	delete(c.inflight, id)
	c.mu.Unlock()
}
