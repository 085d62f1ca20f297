// Package telegram delivers alerts through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shuttlewatch/shuttlewatch/internal/httpx"
	"github.com/shuttlewatch/shuttlewatch/internal/notify"
)

// DefaultBaseURL is the base URL for the Telegram Bot API.
const DefaultBaseURL = "https://api.telegram.org"

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Telegram client.
type ClientConfig struct {
	// BotToken authenticates the bot (required).
	BotToken string

	// ChatID is the destination chat (required).
	ChatID string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use. If nil, a default
	// resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration
}

// ConfigFromEnv builds a config from NOTIFY_TELEGRAM_* variables.
func ConfigFromEnv() ClientConfig {
	return ClientConfig{
		BotToken: os.Getenv("NOTIFY_TELEGRAM_BOT_TOKEN"),
		ChatID:   os.Getenv("NOTIFY_TELEGRAM_CHAT_ID"),
		BaseURL:  os.Getenv("NOTIFY_TELEGRAM_BASE_URL"),
	}
}

// Enabled reports whether the config carries enough to send.
func (cfg ClientConfig) Enabled() bool {
	return cfg.BotToken != "" && cfg.ChatID != ""
}

// Client sends alerts to one Telegram chat.
type Client struct {
	baseURL    string
	botToken   string
	chatID     string
	httpClient HTTPDoer
}

var _ notify.Notifier = (*Client)(nil)

// NewClient creates a Telegram client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("telegram: bot token is required")
	}
	if cfg.ChatID == "" {
		return nil, errors.New("telegram: chat id is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = httpx.NewClient(httpx.ClientConfig{
			Name:            "telegram",
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		botToken:   cfg.BotToken,
		chatID:     cfg.ChatID,
		httpClient: httpClient,
	}, nil
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends the message as one Markdown-formatted chat message.
func (c *Client) Notify(ctx context.Context, msg notify.Message) error {
	payload := sendMessageRequest{
		ChatID:    c.chatID,
		Text:      "*" + msg.Subject + "*\n\n" + msg.Body,
		ParseMode: "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode sendMessage request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	var apiResp sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("decode sendMessage response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !apiResp.OK {
		return fmt.Errorf("telegram api error (status %d): %s", resp.StatusCode, apiResp.Description)
	}

	return nil
}
