package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"
)

// errObjectNotFound is returned when a requested object does not exist.
var errObjectNotFound = errors.New("artifacts: object not found")

// S3Config holds the configuration for an S3 artifact bucket.
type S3Config struct {
	// Endpoint is the S3 endpoint URL. Leave empty to use AWS S3.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// KeyPrefix is prepended to every object key, e.g. "ci/run-42".
	KeyPrefix string
	// UsePathStyle is required for most S3-compatible services and gofakes3.
	UsePathStyle bool
}

// S3Sink uploads bundles to an S3 bucket.
type S3Sink struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// NewS3Sink creates a sink from configuration.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	var opts []func(*config.LoadOptions) error

	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3SinkFromClient(client, cfg.Bucket, cfg.KeyPrefix), nil
}

// NewS3SinkFromClient wraps an existing S3 client. Tests use it with gofakes3.
func NewS3SinkFromClient(client *s3.Client, bucket, keyPrefix string) *S3Sink {
	return &S3Sink{
		client:    client,
		bucket:    bucket,
		keyPrefix: strings.Trim(keyPrefix, "/"),
	}
}

func (s *S3Sink) key(parts ...string) string {
	if s.keyPrefix != "" {
		parts = append([]string{s.keyPrefix}, parts...)
	}
	return path.Join(parts...)
}

// Save uploads every part of the bundle concurrently and returns s3:// locations.
func (s *S3Sink) Save(ctx context.Context, b Bundle) ([]string, error) {
	objs, err := b.objects()
	if err != nil {
		return nil, err
	}
	prefix := b.Prefix()

	locations := make([]string, len(objs))
	g, gctx := errgroup.WithContext(ctx)
	for i, obj := range objs {
		g.Go(func() error {
			key := s.key(prefix, obj.name)
			if err := s.putObject(gctx, key, obj.data, obj.contentType); err != nil {
				return err
			}
			locations[i] = "s3://" + s.bucket + "/" + key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return locations, nil
}

func (s *S3Sink) putObject(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("artifacts: failed to put object %q: %w", key, err)
	}
	return nil
}

// getObject retrieves a stored artifact by key.
// Returns errObjectNotFound if the key does not exist.
func (s *S3Sink) getObject(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, errObjectNotFound
		}
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, errObjectNotFound
		}
		return nil, fmt.Errorf("artifacts: failed to get object %q: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("artifacts: failed to read object body %q: %w", key, err)
	}
	return data, nil
}
