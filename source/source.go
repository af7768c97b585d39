// Package source resolves input references to local files. A reference
// is either a plain filesystem path, used as-is, or an s3://bucket/key
// URL fetched from a MinIO-compatible endpoint into a temp file.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Credentials holds S3 connection settings. Zero fields fall back to
// the UNTEX_S3_* and AWS_* environment variables.
type Credentials struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	SessionToken    string `yaml:"session_token,omitempty" json:"session_token,omitempty"`
	UseSSL          bool   `yaml:"use_ssl" json:"use_ssl"`
}

func (c *Credentials) applyEnv() {
	if c.Endpoint == "" {
		c.Endpoint = os.Getenv("UNTEX_S3_ENDPOINT")
	}
	if c.AccessKeyID == "" {
		c.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if c.SecretAccessKey == "" {
		c.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	if c.SessionToken == "" {
		c.SessionToken = os.Getenv("AWS_SESSION_TOKEN")
	}
}

// newMinioClient creates a MinIO client from the credentials.
func (c *Credentials) newMinioClient() (*minio.Client, error) {
	c.applyEnv()
	if c.Endpoint == "" {
		return nil, errors.New("S3 endpoint is required (set UNTEX_S3_ENDPOINT)")
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return nil, errors.New("S3 credentials are required (set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY)")
	}

	client, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKeyID, c.SecretAccessKey, c.SessionToken),
		Secure: c.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating S3 client for endpoint %s: %w", c.Endpoint, err)
	}
	return client, nil
}

// Resolver turns input references into local file paths.
type Resolver struct {
	creds  Credentials
	logger *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(creds Credentials, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{creds: creds, logger: logger}
}

// IsRemote reports whether ref needs fetching before use.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "s3://")
}

// Resolve returns a local path for ref plus a cleanup function that
// removes any temp files. Local paths pass through unchanged.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, func(), error) {
	noop := func() {}
	if !IsRemote(ref) {
		return ref, noop, nil
	}

	bucket, key, err := ParseS3URL(ref)
	if err != nil {
		return "", noop, err
	}

	client, err := r.creds.newMinioClient()
	if err != nil {
		return "", noop, err
	}

	dir, err := os.MkdirTemp("", "untex-input-*")
	if err != nil {
		return "", noop, fmt.Errorf("creating temp dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	dest := filepath.Join(dir, filepath.Base(key))
	r.logger.Info("fetching input from S3",
		zap.String("bucket", bucket),
		zap.String("key", key),
	)
	if err := client.FGetObject(ctx, bucket, key, dest, minio.GetObjectOptions{}); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("downloading object %s from bucket %s: %w", key, bucket, err)
	}
	return dest, cleanup, nil
}

// ParseS3URL splits an s3://bucket/key reference.
func ParseS3URL(ref string) (bucket, key string, err error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 URL %q: %w", ref, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("invalid S3 URL %q: scheme must be s3", ref)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 URL %q: expected s3://bucket/key", ref)
	}
	return bucket, key, nil
}
