package journal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"
)

// ObjectStore is the storage an Archiver uploads to (MinIO or S3).
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// Archiver copies a journal to object storage after a failed run.
type Archiver struct {
	store  ObjectStore
	logger *slog.Logger
	now    func() time.Time
}

func NewArchiver(store ObjectStore, logger *slog.Logger) *Archiver {
	return &Archiver{store: store, logger: logger, now: time.Now}
}

// Key returns journals/<repo>/<UTC timestamp>.jsonl.
func (a *Archiver) Key(repo string) string {
	return path.Join("journals", repo, a.now().UTC().Format("20060102T150405Z")+".jsonl")
}

// Archive uploads the journal at journalPath and returns the object key.
func (a *Archiver) Archive(ctx context.Context, repo, journalPath string) (string, error) {
	f, err := os.Open(journalPath)
	if err != nil {
		return "", fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat journal: %w", err)
	}

	key := a.Key(repo)
	if err := a.store.Upload(ctx, key, f, info.Size(), "application/x-ndjson"); err != nil {
		return "", err
	}
	a.logger.Info("journal archived", slog.String("key", key), slog.Int64("bytes", info.Size()))
	return key, nil
}

// Fetch reads an archived journal back.
func (a *Archiver) Fetch(ctx context.Context, key string) ([]Entry, error) {
	rc, err := a.store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Read(rc)
}
