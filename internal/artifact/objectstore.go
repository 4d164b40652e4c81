package artifact

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultRegion is used when an object store config leaves the region empty.
// Cloudflare R2 only accepts "auto".
const DefaultRegion = "auto"

// ObjectStoreBackend reads objects from an S3 compatible bucket.
type ObjectStoreBackend struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewObjectStoreBackend connects to cfg.Endpoint with static credentials.
// The endpoint may carry a scheme; "http://" disables TLS.
func NewObjectStoreBackend(cfg BackendConfig) (*ObjectStoreBackend, error) {
	host, secure, err := splitEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	cli, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.ClientID, cfg.Secret, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("object store client: %w", err)
	}
	return &ObjectStoreBackend{client: cli, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (b *ObjectStoreBackend) String() string {
	return fmt.Sprintf("s3://%s/%s", b.bucket, strings.Trim(b.prefix, "/"))
}

func (b *ObjectStoreBackend) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, objectKey(b.prefix, key), minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, newError(ErrNetwork, key, err)
	}
	// GetObject is lazy; Stat performs the request and surfaces missing keys.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, 0, newError(ErrNetwork, key, err)
	}
	return obj, info.Size, nil
}

func objectKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func splitEndpoint(endpoint string) (host string, secure bool, err error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", false, fmt.Errorf("object store endpoint is empty")
	}
	if !strings.Contains(endpoint, "://") {
		return strings.TrimRight(endpoint, "/"), true, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("object store endpoint: %w", err)
	}
	switch u.Scheme {
	case "https":
		return u.Host, true, nil
	case "http":
		return u.Host, false, nil
	default:
		return "", false, fmt.Errorf("object store endpoint: unsupported scheme %q", u.Scheme)
	}
}
