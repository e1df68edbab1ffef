package openrouter

import (
	"chatdigest/app/config"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/samber/do"
	"github.com/sashabaranov/go-openai"
)

// Media is a binary payload sent inline with the prompt.
type Media struct {
	Data     []byte
	MimeType string
}

func (m Media) DataURI() string {
	return "data:" + m.MimeType + ";base64," + base64.StdEncoding.EncodeToString(m.Data)
}

// Content is the user turn of a request: instructions plus at most one media blob.
type Content struct {
	Text  string
	Media *Media
}

// Error is a failed attempt. StatusCode is zero when the provider never answered.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("inference failed (status %s): %s", e.Status(), e.Message)
}

func (e *Error) Status() string {
	if e.StatusCode == 0 {
		return "unknown"
	}

	return strconv.Itoa(e.StatusCode)
}

type Client struct {
	api *openai.Client
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return New(cfg.Inference), nil
}

func New(cfg config.Inference) *Client {
	clientConfig := openai.DefaultConfig(cfg.Token)

	clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	clientConfig.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			referer: cfg.Referer,
			title:   cfg.Title,
		},
	}

	return &Client{
		api: openai.NewClientWithConfig(clientConfig),
	}
}

// Invoke performs a single chat completion against one model.
func (c *Client) Invoke(ctx context.Context, model, systemPrompt string, content Content) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)

	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	messages = append(messages, userMessage(content))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", toError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Message: "no chat completion found"}
	}

	result := strings.TrimSpace(resp.Choices[0].Message.Content)
	if result == "" {
		return "", &Error{Message: "empty chat completion"}
	}

	return result, nil
}

func userMessage(content Content) openai.ChatCompletionMessage {
	if content.Media == nil {
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: content.Text,
		}
	}

	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: content.Text,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: content.Media.DataURI(),
				},
			},
		},
	}
}

func toError(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &Error{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}

	return &Error{Message: err.Error()}
}

type headerTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}

	return t.base.RoundTrip(req)
}
