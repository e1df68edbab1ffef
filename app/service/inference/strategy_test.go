package inference

import (
	"chatdigest/app/client/openrouter"
	"chatdigest/app/config"
	"context"
	"errors"
	"testing"
	"time"
)

type invocation struct {
	model        string
	systemPrompt string
	content      openrouter.Content
	at           time.Time
}

type fakeInvoker struct {
	failures int
	answer   string
	calls    []invocation
}

func (f *fakeInvoker) Invoke(_ context.Context, model, systemPrompt string, content openrouter.Content) (string, error) {
	f.calls = append(f.calls, invocation{model, systemPrompt, content, time.Now()})

	if len(f.calls) <= f.failures {
		return "", &openrouter.Error{StatusCode: 429, Message: "rate limited"}
	}

	return f.answer, nil
}

func recordingWait(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
}

func TestRunSucceedsOnLastAttempt(t *testing.T) {
	plan := config.Plan{
		{Model: "a", Delay: 0},
		{Model: "a", Delay: 30 * time.Millisecond},
		{Model: "b", Delay: 20 * time.Millisecond},
	}

	client := &fakeInvoker{failures: len(plan) - 1, answer: "done"}
	strategy := NewStrategy(client)

	start := time.Now()
	result, ok := strategy.Run(context.Background(), Task{Name: "test"}, plan)
	elapsed := time.Since(start)

	if !ok || result != "done" {
		t.Fatalf("expected success, got %q %v", result, ok)
	}
	if len(client.calls) != len(plan) {
		t.Fatalf("expected %d calls, got %d", len(plan), len(client.calls))
	}
	for i, call := range client.calls {
		if call.model != plan[i].Model {
			t.Errorf("call %d used model %s, want %s", i, call.model, plan[i].Model)
		}
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("expected at least 50ms elapsed, got %s", elapsed)
	}
	if gap := client.calls[1].at.Sub(client.calls[0].at); gap < 30*time.Millisecond {
		t.Errorf("expected >= 30ms between first and second call, got %s", gap)
	}
	if gap := client.calls[2].at.Sub(client.calls[1].at); gap < 20*time.Millisecond {
		t.Errorf("expected >= 20ms between second and third call, got %s", gap)
	}
}

func TestRunSkipsDelayBeforeFirstAttempt(t *testing.T) {
	var waits []time.Duration

	client := &fakeInvoker{failures: 2, answer: "ok"}
	strategy := NewStrategy(client)
	strategy.wait = recordingWait(&waits)

	plan := config.Plan{
		{Model: "a", Delay: time.Hour},
		{Model: "a", Delay: 3 * time.Second},
		{Model: "a", Delay: 6 * time.Second},
	}

	if _, ok := strategy.Run(context.Background(), Task{Name: "test"}, plan); !ok {
		t.Fatal("expected success")
	}

	if len(waits) != 2 || waits[0] != 3*time.Second || waits[1] != 6*time.Second {
		t.Errorf("unexpected waits %v", waits)
	}
}

func TestRunStopsOnFirstSuccess(t *testing.T) {
	client := &fakeInvoker{answer: "first"}
	strategy := NewStrategy(client)

	result, ok := strategy.Run(context.Background(), Task{Name: "test"}, config.Plan{{Model: "a"}, {Model: "b"}})
	if !ok || result != "first" {
		t.Fatalf("unexpected result %q %v", result, ok)
	}
	if len(client.calls) != 1 {
		t.Errorf("expected a single call, got %d", len(client.calls))
	}
}

func TestRunExhaustedReturnsFalse(t *testing.T) {
	var waits []time.Duration

	client := &fakeInvoker{failures: 100}
	strategy := NewStrategy(client)
	strategy.wait = recordingWait(&waits)

	plan := config.Plan{{Model: "a"}, {Model: "b", Delay: time.Second}, {Model: "c", Delay: time.Second}}

	result, ok := strategy.Run(context.Background(), Task{Name: "test"}, plan)
	if ok || result != "" {
		t.Fatalf("expected exhaustion, got %q %v", result, ok)
	}
	if len(client.calls) != 3 {
		t.Errorf("expected 3 calls, got %d", len(client.calls))
	}
}

func TestRunHandlesUntypedErrors(t *testing.T) {
	strategy := NewStrategy(invokerFunc(func() (string, error) {
		return "", errors.New("boom")
	}))

	if _, ok := strategy.Run(context.Background(), Task{Name: "test"}, config.Plan{{Model: "a"}}); ok {
		t.Fatal("expected failure")
	}
}

func TestRunCancelledDuringWait(t *testing.T) {
	client := &fakeInvoker{failures: 100}
	strategy := NewStrategy(client)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	plan := config.Plan{{Model: "a"}, {Model: "b", Delay: time.Minute}}

	start := time.Now()
	if _, ok := strategy.Run(ctx, Task{Name: "test"}, plan); ok {
		t.Fatal("expected failure")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("wait must end when the context is done")
	}
	if len(client.calls) != 1 {
		t.Errorf("expected a single call, got %d", len(client.calls))
	}
}

func TestRunForwardsTask(t *testing.T) {
	client := &fakeInvoker{answer: "ok"}
	strategy := NewStrategy(client)

	media := &openrouter.Media{Data: []byte{1}, MimeType: "image/png"}
	task := Task{Name: "test", SystemPrompt: "system", Content: openrouter.Content{Text: "user", Media: media}}

	strategy.Run(context.Background(), task, config.Plan{{Model: "a"}})

	call := client.calls[0]
	if call.systemPrompt != "system" || call.content.Text != "user" || call.content.Media != media {
		t.Errorf("task was not forwarded: %+v", call)
	}
}

type invokerFunc func() (string, error)

func (f invokerFunc) Invoke(context.Context, string, string, openrouter.Content) (string, error) {
	return f()
}
