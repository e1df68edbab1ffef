package gateway

import (
	"chatdigest/app/config"
	"chatdigest/app/service/conversation"
	"chatdigest/app/util/mylog"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/do"
)

var (
	// ErrLoggedOut is returned by Listen when the account session was revoked.
	ErrLoggedOut    = errors.New("logged out")
	ErrNotConnected = errors.New("not connected")
	ErrMissingField = errors.New("missing field")
)

// Source is a messaging account that produces inbound events and can send text.
type Source interface {
	Name() string
	Connected() bool
	// Listen runs one connection session and returns when it is lost.
	Listen(ctx context.Context) error
	Send(ctx context.Context, chatID, text string) error
}

type Store interface {
	Append(id string, msg conversation.Message)
}

type Service struct {
	store          Store
	selfName       string
	reconnectDelay time.Duration
	now            func() time.Time

	mu      sync.RWMutex
	sources map[string]Source
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewGateway(do.MustInvoke[*conversation.Service](di), cfg.Summary.SelfName, cfg.ReconnectDelay), nil
}

func NewGateway(store Store, selfName string, reconnectDelay time.Duration) *Service {
	return &Service{
		store:          store,
		selfName:       selfName,
		reconnectDelay: reconnectDelay,
		now:            time.Now,
		sources:        make(map[string]Source),
	}
}

func (s *Service) Register(source Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sources[source.Name()] = source
}

// ConversationID builds the id under which a chat of a source is stored.
func ConversationID(source, chatID string) string {
	return source + ":" + chatID
}

func splitConversationID(id string) (string, string, bool) {
	source, chatID, ok := strings.Cut(id, ":")
	if !ok || source == "" || chatID == "" {
		return "", "", false
	}

	return source, chatID, true
}

// Run supervises every registered source until ctx is done.
func (s *Service) Run(ctx context.Context) {
	s.mu.RLock()
	sources := make([]Source, 0, len(s.sources))
	for _, source := range s.sources {
		sources = append(sources, source)
	}
	s.mu.RUnlock()

	if len(sources) == 0 {
		slog.Warn("No message sources configured")
	}

	var wg sync.WaitGroup
	for _, source := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.supervise(ctx, source)
		}()
	}
	wg.Wait()
}

func (s *Service) supervise(ctx context.Context, source Source) {
	for {
		slog.Info("Connecting message source", "source", source.Name())

		err := source.Listen(ctx)
		if ctx.Err() != nil {
			return
		}

		if errors.Is(err, ErrLoggedOut) {
			slog.Error("Message source logged out, not reconnecting",
				"source", source.Name(),
				"error", err,
				mylog.TelegramAttr, true)
			return
		}

		slog.Warn("Message source connection lost",
			"source", source.Name(),
			"error", err,
			"reconnect_in", s.reconnectDelay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

// Send delivers text through the source owning conversationID and records it locally.
func (s *Service) Send(ctx context.Context, conversationID, text string) error {
	if strings.TrimSpace(conversationID) == "" {
		return fmt.Errorf("%w: conversationId", ErrMissingField)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text", ErrMissingField)
	}

	sourceName, chatID, ok := splitConversationID(conversationID)
	if !ok {
		return fmt.Errorf("%w: unknown conversation %q", ErrNotConnected, conversationID)
	}

	s.mu.RLock()
	source, ok := s.sources[sourceName]
	s.mu.RUnlock()

	if !ok || !source.Connected() {
		return fmt.Errorf("%w: %s", ErrNotConnected, sourceName)
	}

	if err := source.Send(ctx, chatID, text); err != nil {
		return fmt.Errorf("failed to send message via %s: %w", sourceName, err)
	}

	now := s.now()
	s.store.Append(conversationID, conversation.Message{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		Timestamp: now,
		Sender:    s.selfName,
		Kind:      conversation.KindText,
		Text:      text,
		FromMe:    true,
	})

	slog.Info("Message sent", "conversation_id", conversationID, "text", text)

	return nil
}

// Status reports connectivity per source.
func (s *Service) Status() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]bool, len(s.sources))
	for name, source := range s.sources {
		result[name] = source.Connected()
	}

	return result
}
