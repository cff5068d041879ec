package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"scoutgw/internal/domain"
)

const (
	defaultSweepBatchSize = 500
	sweepTimeout          = 5 * time.Minute
)

// SweepStats summarizes one retention pass.
type SweepStats struct {
	Archived int
	Deleted  int64
}

// Sweeper removes terminal audit records older than the retention window,
// optionally exporting each batch to an archive sink first. Records still
// open are never swept, whatever their age.
type Sweeper struct {
	repo      domain.AuditRecordRepository
	sink      domain.ArchiveSink
	retention time.Duration
	batchSize int
	logger    *slog.Logger
	cron      *cron.Cron
	now       func() time.Time
}

// NewSweeper creates a sweeper. sink may be nil, in which case expired
// records are deleted without export. retentionDays <= 0 disables sweeping.
func NewSweeper(repo domain.AuditRecordRepository, sink domain.ArchiveSink, retentionDays int, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		repo:      repo,
		sink:      sink,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		batchSize: defaultSweepBatchSize,
		logger:    logger,
		cron:      cron.New(),
		now:       time.Now,
	}
}

// Start schedules periodic sweeps.
func (s *Sweeper) Start(schedule string) error {
	if s.retention <= 0 {
		s.logger.Info("audit retention disabled, records are kept indefinitely")
		return nil
	}

	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		stats, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Error("audit retention sweep failed", "error", err)
			return
		}
		if stats.Archived > 0 || stats.Deleted > 0 {
			s.logger.Info("audit retention sweep",
				"archived", stats.Archived,
				"deleted", stats.Deleted,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.logger.Info("audit retention sweeper started",
		"schedule", schedule,
		"retention", s.retention.String(),
	)
	return nil
}

// Stop halts scheduled sweeps. A sweep already running finishes.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// Sweep runs one retention pass. With a sink configured, each batch is
// exported before its records are deleted; an export failure aborts the
// pass with everything not yet exported still in place.
func (s *Sweeper) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	if s.retention <= 0 {
		return stats, nil
	}
	cutoff := s.now().UTC().Add(-s.retention)

	if s.sink == nil {
		deleted, err := s.repo.DeleteTerminalBefore(ctx, cutoff)
		if err != nil {
			return stats, fmt.Errorf("delete expired audit records: %w", err)
		}
		stats.Deleted = deleted
		return stats, nil
	}

	stamp := s.now().UTC()
	for batch := 0; ; batch++ {
		records, err := s.repo.ListTerminalBefore(ctx, cutoff, s.batchSize)
		if err != nil {
			return stats, fmt.Errorf("list expired audit records: %w", err)
		}
		if len(records) == 0 {
			return stats, nil
		}

		key := fmt.Sprintf("%s/audit-%s-%03d.jsonl",
			stamp.Format("2006/01/02"), stamp.Format("150405"), batch)
		data, err := encodeArchiveBatch(records)
		if err != nil {
			return stats, fmt.Errorf("encode archive batch: %w", err)
		}
		if err := s.sink.Put(ctx, key, data); err != nil {
			return stats, fmt.Errorf("archive batch to %s: %w", s.sink.Name(), err)
		}
		stats.Archived += len(records)

		// Records are listed oldest first, so everything at or before the
		// last created_at is exactly the exported batch.
		batchEnd := records[len(records)-1].CreatedAt.Add(time.Nanosecond)
		deleted, err := s.repo.DeleteTerminalBefore(ctx, batchEnd)
		if err != nil {
			return stats, fmt.Errorf("delete archived audit records: %w", err)
		}
		stats.Deleted += deleted
	}
}

// archiveRecord is the export schema. Kept separate from the domain struct
// so archived files stay stable across internal refactors.
type archiveRecord struct {
	ExecutionID   string     `json:"execution_id"`
	ClientID      string     `json:"client_id"`
	QueryText     string     `json:"query_text"`
	Status        string     `json:"status"`
	ViolationKind *string    `json:"violation_kind,omitempty"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	RowCount      *int64     `json:"row_count,omitempty"`
	DurationMs    *int64     `json:"duration_ms,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
}

func encodeArchiveBatch(records []domain.AuditRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		err := enc.Encode(archiveRecord{
			ExecutionID:   rec.ExecutionID,
			ClientID:      rec.ClientID,
			QueryText:     rec.QueryText,
			Status:        string(rec.Status),
			ViolationKind: rec.ViolationKind,
			ErrorMessage:  rec.ErrorMessage,
			RowCount:      rec.RowCount,
			DurationMs:    rec.DurationMs,
			CreatedAt:     rec.CreatedAt,
			ClosedAt:      rec.ClosedAt,
		})
		if err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
