// Package storage provides S3-compatible object storage for the raw entry
// archive.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/arenhaus/newswire/internal/config"
)

// Client wraps an S3-compatible object storage client. An unconfigured
// client is valid and stores nothing.
type Client struct {
	s3     *s3.Client
	bucket string
}

// NewClient creates a storage client for any S3-compatible endpoint. With
// no endpoint configured the archive is disabled and every store call is a
// logged no-op.
func NewClient(ctx context.Context, cfg config.S3Config) (*Client, error) {
	if cfg.Endpoint == "" {
		slog.Warn("storage: S3 endpoint not configured, entry archive disabled")
		return &Client{bucket: cfg.Bucket}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = &cfg.Endpoint
		o.UsePathStyle = true
	})

	return &Client{
		s3:     client,
		bucket: cfg.Bucket,
	}, nil
}

// Configured reports whether uploads will actually happen.
func (c *Client) Configured() bool {
	return c.s3 != nil
}

// StoreEntry uploads one raw entry snapshot. Keys ending in .gz are
// gzip-compressed on the way up.
func (c *Client) StoreEntry(ctx context.Context, key string, data []byte) error {
	if c.s3 == nil {
		return nil
	}

	body := data
	if strings.HasSuffix(key, ".gz") {
		compressed, err := gzipCompress(data)
		if err != nil {
			return fmt.Errorf("storage: compress %s: %w", key, err)
		}
		body = compressed
	}

	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("storage: upload %s: %w", key, err)
	}

	slog.Debug("storage: entry archived", "key", key, "size", len(body))
	return nil
}

// GetEntry retrieves one archived snapshot, decompressing .gz keys.
func (c *Client) GetEntry(ctx context.Context, key string) ([]byte, error) {
	if c.s3 == nil {
		return nil, fmt.Errorf("storage: not configured")
	}

	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}

	if strings.HasSuffix(key, ".gz") {
		data, err = gzipDecompress(data)
		if err != nil {
			return nil, fmt.Errorf("storage: decompress %s: %w", key, err)
		}
	}
	return data, nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
