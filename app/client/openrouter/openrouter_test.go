package openrouter

import (
	"chatdigest/app/config"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return New(config.Inference{
		BaseURL: url,
		Token:   "test-key",
		Referer: "http://localhost:3000",
		Title:   "Chat Digest",
		Timeout: 5 * time.Second,
	})
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
}

func TestInvokeText(t *testing.T) {
	var body map[string]any
	var headers http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		headers = r.Header.Clone()
		json.NewDecoder(r.Body).Decode(&body)
		writeCompletion(w, "  Hello!  ")
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Invoke(context.Background(), "model-a", "be brief", Content{Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}

	if result != "Hello!" {
		t.Errorf("expected trimmed content, got %q", result)
	}
	if got := headers.Get("Authorization"); got != "Bearer test-key" {
		t.Errorf("unexpected authorization header %q", got)
	}
	if got := headers.Get("HTTP-Referer"); got != "http://localhost:3000" {
		t.Errorf("unexpected referer header %q", got)
	}
	if got := headers.Get("X-Title"); got != "Chat Digest" {
		t.Errorf("unexpected title header %q", got)
	}
	if body["model"] != "model-a" {
		t.Errorf("unexpected model %v", body["model"])
	}

	messages, _ := body["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(messages))
	}
	if role := messages[0].(map[string]any)["role"]; role != "system" {
		t.Errorf("expected system role first, got %v", role)
	}
}

func TestInvokeWithMedia(t *testing.T) {
	var body map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		writeCompletion(w, "transcript")
	}))
	defer server.Close()

	content := Content{
		Text:  "transcribe",
		Media: &Media{Data: []byte("abc"), MimeType: "audio/ogg"},
	}

	if _, err := newTestClient(server.URL).Invoke(context.Background(), "model-a", "", content); err != nil {
		t.Fatal(err)
	}

	messages, _ := body["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("expected only the user message, got %d", len(messages))
	}

	parts, _ := messages[0].(map[string]any)["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected two content parts, got %v", messages[0])
	}

	imagePart := parts[1].(map[string]any)
	if imagePart["type"] != "image_url" {
		t.Errorf("unexpected part type %v", imagePart["type"])
	}

	url, _ := imagePart["image_url"].(map[string]any)["url"].(string)
	if url != "data:audio/ogg;base64,YWJj" {
		t.Errorf("unexpected data uri %q", url)
	}
}

func TestInvokeProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","code":429}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Invoke(context.Background(), "model-a", "", Content{Text: "hi"})

	var inferenceErr *Error
	if !errors.As(err, &inferenceErr) {
		t.Fatalf("expected *Error, got %T (%v)", err, err)
	}
	if inferenceErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", inferenceErr.StatusCode)
	}
	if !strings.Contains(inferenceErr.Message, "rate limited") {
		t.Errorf("unexpected message %q", inferenceErr.Message)
	}
}

func TestInvokeEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Invoke(context.Background(), "model-a", "", Content{Text: "hi"})

	var inferenceErr *Error
	if !errors.As(err, &inferenceErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if inferenceErr.Status() != "unknown" {
		t.Errorf("expected unknown status, got %s", inferenceErr.Status())
	}
}

func TestInvokeTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url).Invoke(context.Background(), "model-a", "", Content{Text: "hi"})

	var inferenceErr *Error
	if !errors.As(err, &inferenceErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if inferenceErr.StatusCode != 0 {
		t.Errorf("expected no status for transport failure, got %d", inferenceErr.StatusCode)
	}
}
