package ingest

import (
	"chatdigest/app/client/openrouter"
	"chatdigest/app/service/conversation"
	"chatdigest/app/service/inference"
	"chatdigest/app/service/queue"
	"chatdigest/app/service/summary"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/do"
)

type Enricher interface {
	Transcribe(ctx context.Context, media openrouter.Media) (string, bool)
	Describe(ctx context.Context, media openrouter.Media) (string, bool)
}

type Store interface {
	Append(id string, msg conversation.Message)
}

type Updater interface {
	Update(ctx context.Context, id string)
}

// Service resolves inbound events to text, stores them and refreshes the summary.
type Service struct {
	queueSvc *queue.Service
	store    Store
	enricher Enricher
	updater  Updater
}

func New(di *do.Injector) (*Service, error) {
	s := NewPipeline(
		do.MustInvoke[*conversation.Service](di),
		do.MustInvoke[*inference.Service](di),
		do.MustInvoke[*summary.Service](di),
	)
	s.queueSvc = do.MustInvoke[*queue.Service](di)

	return s, nil
}

func NewPipeline(store Store, enricher Enricher, updater Updater) *Service {
	return &Service{
		store:    store,
		enricher: enricher,
		updater:  updater,
	}
}

// Run handles queued events one at a time until ctx is done or the queue closes.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.queueSvc.Channel():
			if !ok {
				return
			}

			start := time.Now()
			stored := s.Handle(ctx, msg)

			slog.Info("Processed message",
				"conversation_id", msg.ConversationID,
				"sender", msg.Sender,
				"kind", msg.Kind,
				"stored", stored,
				"duration", time.Since(start))
		}
	}
}

// Handle processes a single event and reports whether it was stored.
func (s *Service) Handle(ctx context.Context, msg queue.InboundMessage) bool {
	text, ok := s.resolve(ctx, msg)
	if !ok {
		return false
	}

	timestamp := msg.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	messageID := msg.MessageID
	if messageID == "" {
		messageID = timestamp.Format(time.RFC3339Nano)
	}

	s.store.Append(msg.ConversationID, conversation.Message{
		ID:        messageID,
		Timestamp: timestamp,
		Sender:    msg.Sender,
		Kind:      msg.Kind,
		Text:      text,
	})

	s.updater.Update(ctx, msg.ConversationID)

	return true
}

func (s *Service) resolve(ctx context.Context, msg queue.InboundMessage) (string, bool) {
	switch msg.Kind {
	case conversation.KindText:
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			slog.Debug("Empty text message dropped", "conversation_id", msg.ConversationID)
			return "", false
		}

		return text, true

	case conversation.KindAudio:
		if msg.Media == nil {
			slog.Warn("Audio message without media dropped", "conversation_id", msg.ConversationID)
			return "", false
		}

		transcript, ok := s.enricher.Transcribe(ctx, *msg.Media)
		if !ok {
			slog.Warn("Transcription failed, message dropped",
				"conversation_id", msg.ConversationID,
				"sender", msg.Sender)
			return "", false
		}

		return transcript, true

	case conversation.KindImage:
		if msg.Media == nil {
			slog.Warn("Image message without media dropped", "conversation_id", msg.ConversationID)
			return "", false
		}

		description, ok := s.enricher.Describe(ctx, *msg.Media)
		if !ok {
			slog.Warn("Image description failed, message dropped",
				"conversation_id", msg.ConversationID,
				"sender", msg.Sender)
			return "", false
		}

		if caption := strings.TrimSpace(msg.Text); caption != "" {
			description += "\n" + caption
		}

		return description, true

	default:
		slog.Warn("Unsupported message kind dropped",
			"conversation_id", msg.ConversationID,
			"kind", msg.Kind)
		return "", false
	}
}
