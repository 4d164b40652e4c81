// Package fallback submits challenges to remote paid solving providers.
package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config selects and authenticates a provider.
type Config struct {
	Provider  Provider
	ClientKey string
	// Endpoint overrides the provider's default createTask URL.
	Endpoint string
	// ImageLimit caps the images per request for batched providers.
	ImageLimit int
}

// Option configures a Client via functional options.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout overrides the default HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Client talks to one provider. It is safe for concurrent use.
type Client struct {
	provider Provider
	key      string
	endpoint string
	limit    int
	http     *http.Client
	log      zerolog.Logger
}

// New validates cfg and returns a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	p, err := ParseProvider(string(cfg.Provider))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.ClientKey) == "" {
		return nil, fmt.Errorf("fallback %s: client key is empty", p)
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = p.DefaultEndpoint()
	}
	limit := cfg.ImageLimit
	if limit < 1 {
		limit = 1
	}
	c := &Client{
		provider: p,
		key:      cfg.ClientKey,
		endpoint: endpoint,
		limit:    limit,
		http:     &http.Client{Timeout: 60 * time.Second},
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Provider returns the configured provider.
func (c *Client) Provider() Provider { return c.provider }

// Solve submits images and returns one answer per image in input order.
// Single-image providers are called once per image in sequence; batched
// providers are called once per chunk of at most ImageLimit images.
// Any provider error fails the whole call.
func (c *Client) Solve(ctx context.Context, images []string, variantName, instruction string) ([]int, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("fallback %s: no images", c.provider)
	}
	size := 1
	if c.provider.Batched() {
		size = c.limit
	}
	answers := make([]int, 0, len(images))
	for start := 0; start < len(images); start += size {
		end := min(start+size, len(images))
		objs, err := c.submit(ctx, images[start:end], variantName, instruction)
		if err != nil {
			return nil, err
		}
		answers = append(answers, objs...)
	}
	if len(answers) != len(images) {
		return nil, &ProviderError{
			Provider: c.provider,
			Status:   http.StatusOK,
			Message:  fmt.Sprintf("%s returned %d answers for %d images", c.provider, len(answers), len(images)),
		}
	}
	return answers, nil
}

func (c *Client) submit(ctx context.Context, images []string, variantName, instruction string) (objs []int, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		requestsTotal.WithLabelValues(string(c.provider), result).Inc()
	}()

	body, err := json.Marshal(c.provider.request(c.key, images, variantName, instruction))
	if err != nil {
		return nil, fmt.Errorf("encode %s task: %w", c.provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: c.provider, Err: err}
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: c.provider, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: c.provider, Status: resp.StatusCode, Err: err}
	}
	c.log.Debug().Str("provider", string(c.provider)).Str("request_id", reqID).Int("images", len(images)).
		Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("fallback submit")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{Provider: c.provider, Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	var tr taskResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, &ProviderError{Provider: c.provider, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if tr.ErrorDescription != nil && *tr.ErrorDescription != "" {
		return nil, &ProviderError{Provider: c.provider, Status: resp.StatusCode, Code: tr.ErrorCode, Message: *tr.ErrorDescription}
	}
	if tr.ErrorID != 0 {
		msg := tr.ErrorCode
		if msg == "" {
			msg = fmt.Sprintf("%s errorId %d", c.provider, tr.ErrorID)
		}
		return nil, &ProviderError{Provider: c.provider, Status: resp.StatusCode, Code: tr.ErrorCode, Message: msg}
	}
	return tr.Solution.Objects, nil
}
