package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/chorizite/plugin-index/pkg/index"
	"github.com/patrickmn/go-cache"
)

// ErrNotFound is returned when the published catalog has no document at the
// requested path.
var ErrNotFound = errors.New("not found")

type ErrorResponse struct {
	StatusCode int
	URL        string
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("unexpected status code: %d (%s)", e.StatusCode, e.URL)
}

func (e *ErrorResponse) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client reads documents of a published plugin index. Responses are cached
// by path, so concurrent reconcilers asking for the same document share one
// request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
}

type Option func(c *Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithCacheExpiration(d time.Duration) Option {
	return func(c *Client) {
		c.cache = cache.New(d, 2*d)
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Minute,
		},
		cache: cache.New(10*time.Minute, 20*time.Minute),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func PluginDetailsPath(id string) string {
	return fmt.Sprintf("plugins/%s.json", id)
}

func PluginIconPath(id string) string {
	return fmt.Sprintf("plugins/%s.png", id)
}

func SchemaPath(name string) string {
	return fmt.Sprintf("schemas/%s", name)
}

const (
	IndexPath            = "index.json"
	PlatformReleasesPath = "chorizite.json"
)

// URL returns the absolute URL of a document of the published catalog.
func (c *Client) URL(endpoint string) (string, error) {
	return url.JoinPath(c.baseURL, endpoint)
}

func (c *Client) sendRequest(ctx context.Context, endpoint string) (*http.Response, error) {
	apiEndpoint, err := c.URL(endpoint)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiEndpoint, nil)
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

// GetRaw returns the raw bytes of a published document.
func (c *Client) GetRaw(ctx context.Context, endpoint string) ([]byte, error) {
	if v, ok := c.cache.Get(endpoint); ok {
		return v.([]byte), nil
	}
	resp, err := c.sendRequest(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &ErrorResponse{StatusCode: resp.StatusCode, URL: resp.Request.URL.String()}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(endpoint, data)
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v any) error {
	data, err := c.GetRaw(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) GetIndex(ctx context.Context) (*index.GlobalIndex, error) {
	var idx index.GlobalIndex
	if err := c.getJSON(ctx, IndexPath, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

func (c *Client) GetPluginDetails(ctx context.Context, id string) (*index.PluginDetails, error) {
	var details index.PluginDetails
	if err := c.getJSON(ctx, PluginDetailsPath(id), &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (c *Client) GetPlatformReleases(ctx context.Context) (*index.PlatformReleases, error) {
	var pr index.PlatformReleases
	if err := c.getJSON(ctx, PlatformReleasesPath, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

func (c *Client) GetPluginIcon(ctx context.Context, id string) ([]byte, error) {
	return c.GetRaw(ctx, PluginIconPath(id))
}

func (c *Client) GetSchema(ctx context.Context, name string) ([]byte, error) {
	return c.GetRaw(ctx, SchemaPath(name))
}
