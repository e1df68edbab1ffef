package telegram

import (
	"chatdigest/app/client/openrouter"
	"chatdigest/app/service/conversation"
	"chatdigest/app/service/gateway"
	"chatdigest/app/service/queue"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot API refuses to serve files above 20MB.
const maxFileSize = 20 << 20

type fetchFunc func(ctx context.Context, fileID string) ([]byte, error)

func convert(ctx context.Context, msg *tgbotapi.Message, fetch fetchFunc) (queue.InboundMessage, bool) {
	if msg.Chat == nil {
		return queue.InboundMessage{}, false
	}

	result := queue.InboundMessage{
		ConversationID: gateway.ConversationID(sourceName, strconv.FormatInt(msg.Chat.ID, 10)),
		MessageID:      strconv.Itoa(msg.MessageID),
		Sender:         senderName(msg),
		Timestamp:      time.Unix(int64(msg.Date), 0),
	}

	var (
		fileID   string
		mimeType string
	)

	switch {
	case msg.Voice != nil:
		result.Kind = conversation.KindAudio
		fileID, mimeType = msg.Voice.FileID, msg.Voice.MimeType
		if mimeType == "" {
			mimeType = "audio/ogg"
		}

	case msg.Audio != nil:
		result.Kind = conversation.KindAudio
		fileID, mimeType = msg.Audio.FileID, msg.Audio.MimeType
		if mimeType == "" {
			mimeType = "audio/mpeg"
		}

	case len(msg.Photo) > 0:
		result.Kind = conversation.KindImage
		result.Text = msg.Caption
		fileID, mimeType = msg.Photo[len(msg.Photo)-1].FileID, "image/jpeg"

	case msg.Text != "":
		result.Kind = conversation.KindText
		result.Text = msg.Text
		return result, true

	case msg.Caption != "":
		result.Kind = conversation.KindText
		result.Text = msg.Caption
		return result, true

	default:
		return queue.InboundMessage{}, false
	}

	data, err := fetch(ctx, fileID)
	if err != nil {
		slog.Warn("Failed to download telegram media",
			"conversation_id", result.ConversationID,
			"kind", result.Kind,
			"error", err)
		return queue.InboundMessage{}, false
	}

	result.Media = &openrouter.Media{
		Data:     data,
		MimeType: mimeType,
	}

	return result, true
}

func senderName(msg *tgbotapi.Message) string {
	if msg.From != nil {
		name := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
		if name != "" {
			return name
		}
		if msg.From.UserName != "" {
			return msg.From.UserName
		}
	}

	if msg.Chat.Title != "" {
		return msg.Chat.Title
	}

	return strconv.FormatInt(msg.Chat.ID, 10)
}

func download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("file exceeds %d bytes", maxFileSize)
	}

	return data, nil
}
