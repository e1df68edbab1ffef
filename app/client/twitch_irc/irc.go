package twitch_irc

import (
	"chatdigest/app/client/twitch"
	"chatdigest/app/config"
	"chatdigest/app/service/conversation"
	"chatdigest/app/service/gateway"
	"chatdigest/app/service/queue"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	irc "github.com/gempir/go-twitch-irc/v4"
	"github.com/samber/do"
)

const sourceName = "twitch"

var _ gateway.Source = (*Client)(nil)

// TokenProvider supplies the current user access token.
type TokenProvider interface {
	AccessToken() string
}

type Client struct {
	cfg    config.Twitch
	tokens TokenProvider
	queue  *queue.Service

	mutex     sync.RWMutex
	ircClient *irc.Client
	connected bool
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)
	if cfg.Twitch == nil {
		return nil, fmt.Errorf("twitch source is not configured")
	}

	return New(*cfg.Twitch, do.MustInvoke[*twitch.Client](di), do.MustInvoke[*queue.Service](di)), nil
}

func New(cfg config.Twitch, tokens TokenProvider, q *queue.Service) *Client {
	return &Client{
		cfg:    cfg,
		tokens: tokens,
		queue:  q,
	}
}

func (c *Client) Name() string {
	return sourceName
}

func (c *Client) Connected() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.connected
}

// Listen joins the configured channel and blocks until the IRC connection ends.
func (c *Client) Listen(ctx context.Context) error {
	ircClient := irc.NewClient(c.cfg.Username, "oauth:"+c.tokens.AccessToken())
	c.setupIRCListeners(ctx, ircClient)
	ircClient.Join(strings.ToLower(c.cfg.Channel))

	c.mutex.Lock()
	c.ircClient = ircClient
	c.mutex.Unlock()

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			ircClient.Disconnect()
		case <-done:
		}
	}()

	err := ircClient.Connect()

	c.mutex.Lock()
	c.ircClient = nil
	c.connected = false
	c.mutex.Unlock()

	switch {
	case errors.Is(err, irc.ErrLoginAuthenticationFailed):
		return fmt.Errorf("%w: %v", gateway.ErrLoggedOut, err)
	case errors.Is(err, irc.ErrClientDisconnected):
		return nil
	default:
		return err
	}
}

func (c *Client) setupIRCListeners(ctx context.Context, ircClient *irc.Client) {
	ircClient.OnPrivateMessage(func(message irc.PrivateMessage) {
		msg, ok := convert(message)
		if !ok {
			return
		}

		if err := c.queue.Add(ctx, msg); err != nil {
			slog.Warn("Failed to queue twitch message", "error", err)
		}
	})

	ircClient.OnConnect(func() {
		c.mutex.Lock()
		c.connected = true
		c.mutex.Unlock()

		slog.Info("Connected to Twitch IRC", "channel", c.cfg.Channel)
	})

	ircClient.OnReconnectMessage(func(message irc.ReconnectMessage) {
		slog.Info("Reconnecting to Twitch IRC")
	})
}

func (c *Client) Send(_ context.Context, channel, text string) error {
	c.mutex.RLock()
	ircClient := c.ircClient
	connected := c.connected
	c.mutex.RUnlock()

	if ircClient == nil || !connected {
		return gateway.ErrNotConnected
	}

	ircClient.Say(channel, text)

	return nil
}

func (c *Client) RunRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshToken()
		}
	}
}

func (c *Client) refreshToken() {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.ircClient != nil {
		c.ircClient.SetIRCToken("oauth:" + c.tokens.AccessToken())
	}
}

func convert(message irc.PrivateMessage) (queue.InboundMessage, bool) {
	text := strings.TrimSpace(message.Message)
	if text == "" {
		return queue.InboundMessage{}, false
	}

	sender := message.User.DisplayName
	if sender == "" {
		sender = strings.ToLower(message.User.Name)
	}

	timestamp := message.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	return queue.InboundMessage{
		ConversationID: gateway.ConversationID(sourceName, strings.ToLower(strings.TrimPrefix(message.Channel, "#"))),
		MessageID:      message.ID,
		Sender:         sender,
		Kind:           conversation.KindText,
		Text:           text,
		Timestamp:      timestamp,
	}, true
}
