package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	// ErrMissingCredentials is raised at upload time when the access or
	// secret key is absent. Startup never validates these so deployments
	// without uploads can run unconfigured.
	ErrMissingCredentials = errors.New("storage: access key or secret key is missing")
	// ErrMissingBucket is raised at upload time when no bucket is configured.
	ErrMissingBucket = errors.New("storage: bucket name is not defined")
	// ErrMissingEndpoint is raised at upload time when no endpoint is configured.
	ErrMissingEndpoint = errors.New("storage: endpoint is not defined")
)

// ObjectStore uploads binary assets and returns a public URL.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// Config holds the S3-compatible store settings.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	// PublicURL overrides the endpoint in returned URLs, for CDN fronting.
	PublicURL string
	UseSSL    bool
}

// MinioStore implements ObjectStore over any S3-compatible service.
// The client is constructed lazily on first upload so configuration
// errors surface as upload failures rather than startup failures.
type MinioStore struct {
	config Config

	mu     sync.Mutex
	client *minio.Client
}

// NewMinioStore captures configuration without touching the network.
func NewMinioStore(cfg Config) *MinioStore {
	return &MinioStore{config: cfg}
}

// Upload stores the object under key with the given content type and
// returns its public URL.
func (s *MinioStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	client, err := s.connect()
	if err != nil {
		return "", err
	}

	opts := minio.PutObjectOptions{ContentType: contentType}
	opts.UserMetadata = map[string]string{"x-amz-acl": "public-read"}
	if _, err := client.PutObject(ctx, s.config.Bucket, key, r, size, opts); err != nil {
		return "", fmt.Errorf("storage: put object: %w", err)
	}

	return s.publicURL(key), nil
}

func (s *MinioStore) connect() (*minio.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	if strings.TrimSpace(s.config.AccessKey) == "" || strings.TrimSpace(s.config.SecretKey) == "" {
		return nil, ErrMissingCredentials
	}
	if strings.TrimSpace(s.config.Bucket) == "" {
		return nil, ErrMissingBucket
	}
	endpoint := strings.TrimSpace(s.config.Endpoint)
	if endpoint == "" {
		return nil, ErrMissingEndpoint
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s.config.AccessKey, s.config.SecretKey, ""),
		Secure: s.config.UseSSL,
		Region: s.config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: init client: %w", err)
	}

	s.client = client
	return client, nil
}

func (s *MinioStore) publicURL(key string) string {
	base := strings.TrimRight(strings.TrimSpace(s.config.PublicURL), "/")
	if base == "" {
		scheme := "https"
		if !s.config.UseSSL {
			scheme = "http"
		}
		base = fmt.Sprintf("%s://%s", scheme, strings.TrimSpace(s.config.Endpoint))
	}
	return fmt.Sprintf("%s/%s/%s", base, s.config.Bucket, strings.TrimLeft(key, "/"))
}
