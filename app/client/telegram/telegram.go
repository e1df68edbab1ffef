package telegram

import (
	"chatdigest/app/config"
	"chatdigest/app/service/gateway"
	"chatdigest/app/service/queue"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/do"
)

const sourceName = "telegram"

var _ gateway.Source = (*Client)(nil)

type Client struct {
	cfg        config.TelegramSource
	queue      *queue.Service
	endpoint   string
	httpClient *http.Client

	mu     sync.RWMutex
	bot    *tgbotapi.BotAPI
	offset int
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)
	if cfg.Telegram == nil {
		return nil, fmt.Errorf("telegram source is not configured")
	}

	return New(*cfg.Telegram, do.MustInvoke[*queue.Service](di)), nil
}

func New(cfg config.TelegramSource, q *queue.Service) *Client {
	return &Client{
		cfg:      cfg,
		queue:    q,
		endpoint: tgbotapi.APIEndpoint,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.PollTimeout+30) * time.Second,
		},
	}
}

func (c *Client) Name() string {
	return sourceName
}

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.bot != nil
}

// Listen long-polls updates until the connection fails or ctx is done.
func (c *Client) Listen(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPIWithClient(c.cfg.Token, c.endpoint, &contextClient{ctx: ctx, client: c.httpClient})
	if err != nil {
		return classify(err)
	}

	c.mu.Lock()
	c.bot = bot
	offset := c.offset
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.bot = nil
		c.mu.Unlock()
	}()

	slog.Info("Connected to Telegram", "bot", bot.Self.UserName)

	for {
		if ctx.Err() != nil {
			return nil
		}

		updateConfig := tgbotapi.NewUpdate(offset)
		updateConfig.Timeout = c.cfg.PollTimeout

		updates, err := bot.GetUpdates(updateConfig)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return classify(err)
		}

		for _, update := range updates {
			offset = update.UpdateID + 1

			c.mu.Lock()
			c.offset = offset
			c.mu.Unlock()

			if update.Message == nil {
				continue
			}

			msg, ok := convert(ctx, update.Message, c.fetcher(bot))
			if !ok {
				continue
			}

			if err = c.queue.Add(ctx, msg); err != nil {
				return fmt.Errorf("queue.Add: %w", err)
			}
		}
	}
}

func (c *Client) Send(_ context.Context, chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}

	c.mu.RLock()
	bot := c.bot
	c.mu.RUnlock()

	if bot == nil {
		return gateway.ErrNotConnected
	}

	if _, err = bot.Send(tgbotapi.NewMessage(id, text)); err != nil {
		return classify(err)
	}

	return nil
}

func (c *Client) fetcher(bot *tgbotapi.BotAPI) fetchFunc {
	return func(ctx context.Context, fileID string) ([]byte, error) {
		url, err := bot.GetFileDirectURL(fileID)
		if err != nil {
			return nil, fmt.Errorf("GetFileDirectURL: %w", err)
		}

		return download(ctx, c.httpClient, url)
	}
}

// classify marks revoked or invalid tokens as a terminal logout.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", gateway.ErrLoggedOut, apiErr.Message)
	}

	return err
}

// contextClient ties bot API requests to the lifetime of a listen session.
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c *contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}
