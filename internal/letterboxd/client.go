// Package letterboxd talks to the public Letterboxd site: profile existence
// checks and per-member RSS activity feeds.
package letterboxd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/filmbot/letterboxd-bot/internal/domain"
)

// DefaultBaseURL is the production Letterboxd site.
const DefaultBaseURL = "https://letterboxd.com"

const defaultTimeout = 15 * time.Second

// Config defines the provider endpoint and request bounds.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Client fetches member data from Letterboxd. Every request is bounded by the
// configured timeout.
type Client struct {
	baseURL string
	http    *http.Client
	parser  *gofeed.Parser
	log     *slog.Logger
}

// NewClient builds a Letterboxd client. Zero config values fall back to the
// production site and a 15s timeout.
func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	parser := gofeed.NewParser()
	parser.Client = httpClient

	return &Client{
		baseURL: cfg.BaseURL,
		http:    httpClient,
		parser:  parser,
		log:     log,
	}
}

// ProfileURL returns the member's profile page URL.
func (c *Client) ProfileURL(handle string) string {
	return fmt.Sprintf("%s/%s/", c.baseURL, handle)
}

// FeedURL returns the member's RSS activity feed URL.
func (c *Client) FeedURL(handle string) string {
	return fmt.Sprintf("%s/%s/rss/", c.baseURL, handle)
}

// UserExists issues a HEAD request against the profile page. Only a 404 means
// the member does not exist; any other status is treated as existing so a
// flaky origin never blocks registration of a valid handle.
func (c *Client) UserExists(ctx context.Context, handle string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.ProfileURL(handle), http.NoBody)
	if err != nil {
		return false, fmt.Errorf("build profile request for %q: %w", handle, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("check profile %q: %w", handle, err)
	}
	defer resp.Body.Close()

	return resp.StatusCode != http.StatusNotFound, nil
}

// Fetch retrieves and parses the member's activity feed, returning every
// entry in feed order. Network errors, non-200 statuses and malformed
// documents all wrap domain.ErrFeedFetch.
func (c *Client) Fetch(ctx context.Context, handle string) ([]Item, error) {
	url := c.FeedURL(handle)
	c.log.Debug("fetching letterboxd feed", "handle", handle, "url", url)

	feed, err := c.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFeedFetch, handle, err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, fi := range feed.Items {
		items = append(items, parseItem(fi))
	}
	return items, nil
}
