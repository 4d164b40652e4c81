package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// StaticBackend downloads objects with GET <base>/<key>.
type StaticBackend struct {
	base   string
	client *http.Client
}

// NewStaticBackend returns a backend rooted at base.
func NewStaticBackend(base string, client *http.Client) *StaticBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &StaticBackend{base: strings.TrimRight(base, "/"), client: client}
}

func (b *StaticBackend) String() string { return b.base }

func (b *StaticBackend) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	u := b.base + "/" + url.PathEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, newError(ErrNetwork, key, err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, 0, newError(ErrNetwork, key, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
		return nil, 0, newError(ErrNetwork, key, fmt.Errorf("GET %s: HTTP %d", u, resp.StatusCode))
	}
	size := resp.ContentLength
	if size < 0 {
		size = 0
	}
	return resp.Body, size, nil
}
