// Package source produces artifact payloads for dispatched events. Snapshot
// bytes ride along on the broker message; recording clips are pulled from
// the controller's HTTP API. A fetch failure is terminal for that single
// event: the controller is the system of record and applies its own
// retention, so the engine never retries a fetch.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/videosync/internal/event"
)

// Source produces the payload bytes for an artifact event.
type Source interface {
	Fetch(ctx context.Context, hint event.SourceHint) ([]byte, error)
}

// Config configures the controller API client.
type Config struct {
	BaseURL string
	Proxy   string
	Timeout time.Duration
}

// Client fetches artifacts from the surveillance controller. It also serves
// inline payloads directly, so the router needs exactly one Source.
type Client struct {
	base   string
	http   *http.Client
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	transport := http.DefaultTransport
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:   cfg.BaseURL,
		http:   &http.Client{Transport: transport, Timeout: timeout},
		logger: logger,
	}, nil
}

// Fetch returns the artifact bytes for the given hint.
func (c *Client) Fetch(ctx context.Context, hint event.SourceHint) ([]byte, error) {
	if len(hint.Inline) > 0 {
		return hint.Inline, nil
	}
	if hint.Camera == "" || hint.ClipEnd <= 0 {
		return nil, fmt.Errorf("hint carries no inline payload and no clip window")
	}
	return c.fetchClip(ctx, hint)
}

func (c *Client) fetchClip(ctx context.Context, hint event.SourceHint) ([]byte, error) {
	u := fmt.Sprintf("%s/api/%s/start/%s/end/%s/clip.mp4",
		c.base,
		url.PathEscape(hint.Camera),
		formatTimestamp(hint.ClipStart),
		formatTimestamp(hint.ClipEnd),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build clip request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch clip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch clip: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read clip body: %w", err)
	}
	if !looksLikeMP4(body) {
		return nil, fmt.Errorf("clip response is not a valid mp4 (%d bytes)", len(body))
	}

	c.logger.Debug("fetched recording clip",
		zap.String("camera", hint.Camera), zap.Int("size_bytes", len(body)))
	return body, nil
}

// Probe makes a single cheap API call to verify reachability. Failures are
// informational: the API may simply be down right now and the engine keeps
// going.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/review/summary", nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("probe controller api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe controller api: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func formatTimestamp(ts float64) string {
	return strconv.FormatFloat(ts, 'f', -1, 64)
}

// looksLikeMP4 checks the ISO BMFF "ftyp" box that every valid clip starts
// with, catching HTML error pages served with a 200.
func looksLikeMP4(b []byte) bool {
	return len(b) >= 12 && string(b[4:8]) == "ftyp"
}
