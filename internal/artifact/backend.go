package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Backend retrieves objects by key.
type Backend interface {
	// Open returns a reader for key and its size in bytes (0 when unknown).
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
	String() string
}

// BackendKind tags the active branch of BackendConfig.
type BackendKind string

const (
	KindStatic      BackendKind = "static"
	KindObjectStore BackendKind = "object_store"
)

// DefaultReleaseURL serves the published model artifacts and version.json.
const DefaultReleaseURL = "https://github.com/0x676e67/fcsrv/releases/download/model"

// BackendConfig selects where artifacts come from. Only the fields of Kind are read.
type BackendConfig struct {
	Kind BackendKind `json:"kind" yaml:"kind" toml:"kind"`

	// static
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url,omitempty"`

	// object_store
	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty" toml:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty" toml:"prefix,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	ClientID string `json:"client_id,omitempty" yaml:"client_id,omitempty" toml:"client_id,omitempty"`
	Secret   string `json:"secret,omitempty" yaml:"secret,omitempty" toml:"secret,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty" toml:"region,omitempty"`
}

// Validate checks that the fields required by Kind are present.
func (c BackendConfig) Validate() error {
	switch c.Kind {
	case "", KindStatic:
		return nil
	case KindObjectStore:
		var missing []string
		if c.Bucket == "" {
			missing = append(missing, "bucket")
		}
		if c.Endpoint == "" {
			missing = append(missing, "endpoint")
		}
		if c.ClientID == "" {
			missing = append(missing, "client_id")
		}
		if c.Secret == "" {
			missing = append(missing, "secret")
		}
		if len(missing) > 0 {
			return fmt.Errorf("object_store backend: missing %s", strings.Join(missing, ", "))
		}
		return nil
	default:
		return fmt.Errorf("unknown backend kind %q", c.Kind)
	}
}

// NewBackend builds the backend described by cfg. client is used by the static
// backend; nil means http.DefaultClient.
func NewBackend(cfg BackendConfig, client *http.Client) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindObjectStore:
		return NewObjectStoreBackend(cfg)
	default:
		base := cfg.BaseURL
		if base == "" {
			base = DefaultReleaseURL
		}
		return NewStaticBackend(base, client), nil
	}
}
