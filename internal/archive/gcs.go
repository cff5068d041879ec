package archive

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"scoutgw/internal/config"
	"scoutgw/internal/domain"
)

var _ domain.ArchiveSink = (*GCSSink)(nil)

// GCSSink writes audit batches to a Google Cloud Storage bucket.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSink builds a GCS sink. With GCS_KEY_FILE set it authenticates from
// that service-account key; otherwise the client falls back to ambient
// application-default credentials.
func NewGCSSink(cfg *config.Config) (*GCSSink, error) {
	var opts []option.ClientOption
	if cfg.GCSKeyFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, cfg.GCSKeyFile))
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &GCSSink{
		client: client,
		bucket: cfg.ArchiveBucket,
		prefix: cfg.ArchivePrefix,
	}, nil
}

func (s *GCSSink) Put(ctx context.Context, key string, data []byte) error {
	object := joinKey(s.prefix, key)
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/x-ndjson"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %q to gcs bucket %q: %w", object, s.bucket, err)
	}
	// Close flushes the upload; errors surface here, not on Write.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish %q to gcs bucket %q: %w", object, s.bucket, err)
	}
	return nil
}

func (s *GCSSink) Name() string { return "gcs" }
