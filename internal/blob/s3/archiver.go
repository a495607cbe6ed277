package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// Archiver periodically uploads the resolved-trade journal to object
// storage, partitioned by day. Uploads are additive; pruning the primary
// journal is a separate, explicit operation.
type Archiver struct {
	writer   domain.BlobWriter
	journal  domain.JournalStore
	prefix   string
	interval time.Duration
	logger   *slog.Logger
}

// NewArchiver creates a journal archiver that runs every interval. prefix is
// prepended to every object key and may be empty.
func NewArchiver(writer domain.BlobWriter, journal domain.JournalStore, prefix string, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:   writer,
		journal:  journal,
		prefix:   strings.Trim(prefix, "/"),
		interval: interval,
		logger:   logger.With(slog.String("component", "journal_archiver")),
	}
}

// Run archives on a fixed ticker until ctx is cancelled. Failed uploads are
// logged and retried on the next tick.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			count, err := a.ArchiveJournal(ctx, now)
			if err != nil {
				a.logger.Warn("journal archive failed", slog.String("error", err.Error()))
				continue
			}
			if count > 0 {
				a.logger.Info("journal archived", slog.Int("entries", count))
			}
		}
	}
}

// ArchiveJournal uploads all journal entries resolved before the given time
// as JSONL to archive/journal/YYYY-MM-DD.jsonl and returns the entry count.
func (a *Archiver) ArchiveJournal(ctx context.Context, before time.Time) (int, error) {
	entries, err := a.journal.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive journal query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive journal marshal: %w", err)
	}

	path := fmt.Sprintf("archive/journal/%s.jsonl", before.UTC().Format("2006-01-02"))
	if a.prefix != "" {
		path = a.prefix + "/" + path
	}
	if err := a.writer.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive journal upload: %w", err)
	}
	return len(entries), nil
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
