package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"scoutgw/internal/config"
	"scoutgw/internal/domain"
)

var _ domain.ArchiveSink = (*S3Sink)(nil)

// S3Sink writes audit batches to an S3-compatible bucket. Path-style
// addressing keeps it working against Hetzner, MinIO, and AWS alike.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Sink builds an S3 sink from the static credentials in config.
func NewS3Sink(cfg *config.Config) (*S3Sink, error) {
	if !cfg.HasS3Config() {
		return nil, fmt.Errorf("S3 archive requires KEY_ID, SECRET, ENDPOINT, and REGION")
	}

	endpoint := fmt.Sprintf("https://%s", *cfg.S3Endpoint)
	client := s3.New(s3.Options{
		Region: *cfg.S3Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			*cfg.S3KeyID, *cfg.S3Secret, "",
		),
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
	})

	return &S3Sink{
		client: client,
		bucket: cfg.ArchiveBucket,
		prefix: cfg.ArchivePrefix,
	}, nil
}

func (s *S3Sink) Put(ctx context.Context, key string, data []byte) error {
	object := joinKey(s.prefix, key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(object),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("put %q to s3 bucket %q: %w", object, s.bucket, err)
	}
	return nil
}

func (s *S3Sink) Name() string { return "s3" }
