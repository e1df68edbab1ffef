package summary

import (
	"chatdigest/app/config"
	"chatdigest/app/service/conversation"
	"chatdigest/app/service/inference"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "embed"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/tmc/langchaingo/prompts"
)

//go:embed prompt_template.txt
var promptTemplate string

const noPriorSummary = "No prior summary."

type Store interface {
	Summary(id string) (string, bool)
	RecentWindow(id string, n int) []conversation.Message
	SetSummary(id, summary string)
}

type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, bool)
}

// Service folds the newest messages into the previous summary of a conversation.
type Service struct {
	store      Store
	summarizer Summarizer

	window    int
	carryOver bool
	template  prompts.PromptTemplate
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewEngine(
		do.MustInvoke[*conversation.Service](di),
		do.MustInvoke[*inference.Service](di),
		cfg.Summary,
	), nil
}

func NewEngine(store Store, summarizer Summarizer, cfg config.Summary) *Service {
	window := cfg.Window
	if window <= 0 {
		window = 20
	}

	return &Service{
		store:      store,
		summarizer: summarizer,
		window:     window,
		carryOver:  cfg.CarryOverEnabled(),
		template: prompts.PromptTemplate{
			Template:       promptTemplate,
			InputVariables: []string{"summary", "messages"},
			TemplateFormat: prompts.TemplateFormatGoTemplate,
		},
	}
}

// Update refreshes the summary of conversation id. Failures keep the previous summary.
func (s *Service) Update(ctx context.Context, id string) {
	window := s.store.RecentWindow(id, s.window)
	if len(window) == 0 {
		return
	}

	var prior string
	if s.carryOver {
		prior, _ = s.store.Summary(id)
	}

	prompt, err := s.BuildPrompt(prior, window)
	if err != nil {
		slog.Error("Failed to build summary prompt", "conversation_id", id, "error", err)
		return
	}

	start := time.Now()

	summary, ok := s.summarizer.Summarize(ctx, prompt)
	if !ok {
		slog.Warn("Summary not updated", "conversation_id", id)
		return
	}

	s.store.SetSummary(id, summary)

	slog.Info("Summary updated",
		"conversation_id", id,
		"messages", len(window),
		"duration", time.Since(start))
}

func (s *Service) BuildPrompt(prior string, messages []conversation.Message) (string, error) {
	if strings.TrimSpace(prior) == "" {
		prior = noPriorSummary
	}

	prompt, err := s.template.Format(map[string]any{
		"summary":  prior,
		"messages": formatMessages(messages),
	})
	if err != nil {
		return "", fmt.Errorf("failed to format prompt: %w", err)
	}

	return prompt, nil
}

func formatMessages(messages []conversation.Message) string {
	return strings.Join(pie.Map(messages, formatMessage), "\n")
}

func formatMessage(msg conversation.Message) string {
	return fmt.Sprintf("[%s - %s]: %s", msg.Sender, msg.Kind.Label(), msg.Text)
}
