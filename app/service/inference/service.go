package inference

import (
	"chatdigest/app/client/openrouter"
	"chatdigest/app/client/speechkit"
	"chatdigest/app/config"
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/do"
)

// Recognizer is a speech-to-text backend tried after the transcription plan is exhausted.
type Recognizer interface {
	Supports(mimeType string) bool
	Recognize(ctx context.Context, media openrouter.Media) (string, error)
}

type Service struct {
	cfg        config.Inference
	strategy   *Strategy
	prompts    taskPrompts
	recognizer Recognizer
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	client := do.MustInvoke[*openrouter.Client](di)

	s, err := NewService(cfg.Inference, NewStrategy(client))
	if err != nil {
		return nil, err
	}

	if cfg.Yandex.SpeechKit.KeyFile != "" {
		recognizer, err := do.Invoke[*speechkit.YandexSpeechKit](di)
		if err != nil {
			slog.Warn("SpeechKit is unavailable", "error", err)
		} else {
			s.recognizer = recognizer
		}
	}

	return s, nil
}

func NewService(cfg config.Inference, strategy *Strategy) (*Service, error) {
	rendered, err := renderPrompts(cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("renderPrompts: %w", err)
	}

	return &Service{
		cfg:      cfg,
		strategy: strategy,
		prompts:  rendered,
	}, nil
}

func (s *Service) WithRecognizer(recognizer Recognizer) *Service {
	s.recognizer = recognizer
	return s
}

func (s *Service) Transcribe(ctx context.Context, media openrouter.Media) (string, bool) {
	text, ok := s.strategy.Run(ctx, Task{
		Name: "transcription",
		Content: openrouter.Content{
			Text:  s.prompts.transcription,
			Media: &media,
		},
	}, s.cfg.Transcription)
	if ok || s.recognizer == nil || !s.recognizer.Supports(media.MimeType) || ctx.Err() != nil {
		return text, ok
	}

	text, err := s.recognizer.Recognize(ctx, media)
	if err != nil {
		slog.Warn("Speech recognition failed", "mime_type", media.MimeType, "error", err)
		return "", false
	}
	if text == "" {
		return "", false
	}

	return text, true
}

func (s *Service) Describe(ctx context.Context, media openrouter.Media) (string, bool) {
	return s.strategy.Run(ctx, Task{
		Name: "description",
		Content: openrouter.Content{
			Text:  s.prompts.description,
			Media: &media,
		},
	}, s.cfg.Description)
}

func (s *Service) Summarize(ctx context.Context, prompt string) (string, bool) {
	return s.strategy.Run(ctx, Task{
		Name:         "summary",
		SystemPrompt: s.prompts.summarySystem,
		Content:      openrouter.Content{Text: prompt},
	}, s.cfg.Summary)
}
