package twitch

import (
	"chatdigest/app/config"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nicklaw5/helix/v2"
	"github.com/samber/do"
)

const refreshInterval = 30 * time.Minute

// Client keeps a fresh user access token for the bot account.
type Client struct {
	cfg   config.Twitch
	helix *helix.Client
	mu    sync.RWMutex
	token string
	renew string
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)
	if cfg.Twitch == nil {
		return nil, fmt.Errorf("twitch source is not configured")
	}

	return New(*cfg.Twitch, nil)
}

// New exchanges the configured refresh token for an access token right away.
func New(cfg config.Twitch, httpClient helix.HTTPClient) (*Client, error) {
	helixClient, err := helix.NewClient(&helix.Options{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		HTTPClient:   httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create helix client: %w", err)
	}

	c := &Client{
		cfg:   cfg,
		helix: helixClient,
		renew: cfg.RefreshToken,
	}

	if err = c.refresh(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.token
}

func (c *Client) RunRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.refresh(); err != nil {
				slog.Error("Failed to refresh twitch token", "error", err)
			}
		}
	}
}

func (c *Client) refresh() error {
	c.mu.RLock()
	refreshToken := c.renew
	c.mu.RUnlock()

	resp, err := c.helix.RefreshUserAccessToken(refreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh user access token: %w", err)
	}
	if resp.StatusCode != 200 || resp.Data.AccessToken == "" {
		return fmt.Errorf("failed to refresh user access token: %d %s", resp.StatusCode, resp.ErrorMessage)
	}

	c.mu.Lock()
	c.token = resp.Data.AccessToken
	if resp.Data.RefreshToken != "" {
		c.renew = resp.Data.RefreshToken
	}
	c.mu.Unlock()

	c.helix.SetUserAccessToken(resp.Data.AccessToken)

	slog.Debug("Twitch token refreshed", "expires_in", resp.Data.ExpiresIn)

	return nil
}
