// Package health reports liveness: outbound pings to healthchecks.io
// and a small ops HTTP server.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shuttlewatch/shuttlewatch/internal/httpx"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PingerConfig holds configuration for the healthchecks.io pinger.
type PingerConfig struct {
	// URL is the check's ping URL. Empty disables pinging.
	URL string

	// HTTPClient is the HTTP client to use. If nil, a default
	// resilient client will be created.
	HTTPClient HTTPDoer

	// Logger for ping outcomes.
	Logger zerolog.Logger
}

// PingerConfigFromEnv builds a config from HEALTHCHECK_URL.
func PingerConfigFromEnv() PingerConfig {
	return PingerConfig{URL: os.Getenv("HEALTHCHECK_URL")}
}

// Pinger signals iteration outcomes to healthchecks.io. An
// unconfigured pinger silently does nothing.
type Pinger struct {
	url        string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewPinger creates a pinger.
func NewPinger(cfg PingerConfig) *Pinger {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpx.NewClient(httpx.ClientConfig{
			Name:            "healthchecks",
			Timeout:         10 * time.Second,
			MaxRetries:      2,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		})
	}
	return &Pinger{
		url:        strings.TrimSuffix(cfg.URL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Enabled reports whether a ping URL is configured.
func (p *Pinger) Enabled() bool {
	return p.url != ""
}

// Ping signals a healthy iteration.
func (p *Pinger) Ping(ctx context.Context) error {
	return p.send(ctx, http.MethodGet, p.url)
}

// PingFailure signals a failed iteration.
func (p *Pinger) PingFailure(ctx context.Context) error {
	return p.send(ctx, http.MethodPost, p.url+"/fail")
}

func (p *Pinger) send(ctx context.Context, method, url string) error {
	if !p.Enabled() {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Error().Err(err).Str("url", url).Msg("healthcheck ping failed")
		return fmt.Errorf("send ping: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		p.logger.Error().Int("status", resp.StatusCode).Str("url", url).Msg("healthcheck ping rejected")
		return fmt.Errorf("ping rejected with status %d", resp.StatusCode)
	}

	p.logger.Debug().Str("url", url).Msg("healthcheck ping sent")
	return nil
}
