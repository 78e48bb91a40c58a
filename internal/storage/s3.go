package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

var ErrNotConfigured = errors.New("storage: bucket not configured")

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps patient documents in a single bucket. Keys are supplied by
// the caller; the returned URL is publicBaseURL/key, or the virtual-hosted
// bucket URL when no base is configured.
type S3Store struct {
	client        S3API
	bucket        string
	publicBaseURL string
	region        string
	logger        zerolog.Logger
}

func NewS3Store(client S3API, bucket, publicBaseURL, region string, logger zerolog.Logger) *S3Store {
	return &S3Store{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		region:        region,
		logger:        logger,
	}
}

func (s *S3Store) Enabled() bool {
	return s != nil && s.client != nil && s.bucket != ""
}

func (s *S3Store) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if !s.Enabled() {
		return "", ErrNotConfigured
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("storage: s3 put %s: %w", key, err)
	}

	s.logger.Debug().Str("bucket", s.bucket).Str("key", key).Int("bytes", len(body)).Msg("object stored")
	return s.URL(key), nil
}

// URL returns the public location of key.
func (s *S3Store) URL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped)
}
