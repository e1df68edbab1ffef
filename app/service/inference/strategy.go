package inference

import (
	"chatdigest/app/client/openrouter"
	"chatdigest/app/config"
	"context"
	"errors"
	"log/slog"
	"time"
)

// Invoker performs a single inference attempt against one model.
type Invoker interface {
	Invoke(ctx context.Context, model, systemPrompt string, content openrouter.Content) (string, error)
}

type Task struct {
	Name         string
	SystemPrompt string
	Content      openrouter.Content
}

// Strategy walks a fallback plan until one attempt succeeds.
// Runs are independent, nothing is remembered between them.
type Strategy struct {
	client Invoker
	wait   func(ctx context.Context, d time.Duration) error
}

func NewStrategy(client Invoker) *Strategy {
	return &Strategy{
		client: client,
		wait:   sleep,
	}
}

// Run returns the first successful answer, or false once the plan is exhausted
// or ctx is done.
func (s *Strategy) Run(ctx context.Context, task Task, plan config.Plan) (string, bool) {
	for i, attempt := range plan {
		if i > 0 && attempt.Delay > 0 {
			slog.Debug("Waiting before next attempt",
				"task", task.Name,
				"model", attempt.Model,
				"delay", attempt.Delay)

			if err := s.wait(ctx, attempt.Delay); err != nil {
				slog.Warn("Inference interrupted", "task", task.Name, "error", err)
				return "", false
			}
		}

		start := time.Now()

		result, err := s.client.Invoke(ctx, attempt.Model, task.SystemPrompt, task.Content)
		if err == nil {
			slog.Debug("Inference succeeded",
				"task", task.Name,
				"model", attempt.Model,
				"attempt", i+1,
				"duration", time.Since(start))

			return result, true
		}

		status, message := describeFailure(err)
		slog.Warn("Inference attempt failed",
			"task", task.Name,
			"model", attempt.Model,
			"attempt", i+1,
			"status", status,
			"error", message)

		if ctx.Err() != nil {
			return "", false
		}
	}

	slog.Warn("All inference attempts failed", "task", task.Name, "attempts", len(plan))

	return "", false
}

func describeFailure(err error) (string, string) {
	var inferenceErr *openrouter.Error
	if errors.As(err, &inferenceErr) {
		return inferenceErr.Status(), inferenceErr.Message
	}

	return "unknown", err.Error()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
