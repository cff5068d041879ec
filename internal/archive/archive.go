// Package archive stores exported audit batches in object storage. The
// retention sweeper hands each sink a whole batch file; sinks never see
// individual records and never delete anything.
package archive

import (
	"fmt"
	"strings"

	"scoutgw/internal/config"
	"scoutgw/internal/domain"
)

// NewSink builds the archive sink named by ARCHIVE_BACKEND. Backend "none"
// returns a nil sink, which makes the sweeper delete without exporting.
func NewSink(cfg *config.Config) (domain.ArchiveSink, error) {
	switch cfg.ArchiveBackend {
	case "", "none":
		return nil, nil
	case "s3":
		return NewS3Sink(cfg)
	case "azblob":
		return NewAzureSink(cfg)
	case "gcs":
		return NewGCSSink(cfg)
	default:
		return nil, fmt.Errorf("unsupported archive backend %q", cfg.ArchiveBackend)
	}
}

// joinKey prepends the configured prefix to a batch key without doubling
// separators. Object stores treat keys as flat strings, so this is plain
// string work, not path cleaning.
func joinKey(prefix, key string) string {
	key = strings.TrimPrefix(key, "/")
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}
