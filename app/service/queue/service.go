package queue

import (
	"chatdigest/app/client/openrouter"
	"chatdigest/app/config"
	"chatdigest/app/service/conversation"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samber/do"
)

var ErrClosed = errors.New("queue is closed")

var _ do.Shutdownable = (*Service)(nil)

type Service struct {
	queue chan InboundMessage

	mu     sync.RWMutex
	closed bool
}

// InboundMessage is a normalized event produced by a message source.
type InboundMessage struct {
	ConversationID string
	MessageID      string
	Sender         string
	Kind           conversation.Kind
	Text           string
	Media          *openrouter.Media
	Timestamp      time.Time
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewQueue(cfg.Queue.Size), nil
}

func NewQueue(size int) *Service {
	return &Service{
		queue: make(chan InboundMessage, size),
	}
}

// Add enqueues msg, waiting for room until ctx is done.
func (s *Service) Add(ctx context.Context, msg InboundMessage) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	select {
	case s.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) Channel() <-chan InboundMessage {
	return s.queue
}

func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.queue)
	}

	return nil
}
