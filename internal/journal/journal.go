// Package journal records per-file sync failures as JSON lines and reads them
// back for retry runs.
package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// DefaultPath is where failures are journaled when no path is configured.
const DefaultPath = "chat/.vector_sync_errors.jsonl"

// Entry is one failure line.
type Entry struct {
	FilePath  string `json:"file_path"`
	Operation string `json:"operation"`
	Message   string `json:"message"`
	Status    string `json:"status,omitempty"`
}

// Journal appends entries to a JSON-lines file. Appends are best-effort: a
// write failure is logged and never interrupts the caller.
type Journal struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

func New(path string, logger *slog.Logger) *Journal {
	if path == "" {
		path = DefaultPath
	}
	return &Journal{path: path, logger: logger}
}

func (j *Journal) Path() string { return j.path }

// Append writes one entry, creating parent directories as needed.
func (j *Journal) Append(e Entry) {
	if err := j.append(e); err != nil {
		j.logger.Warn("journal write failed",
			slog.String("journal", j.path),
			slog.String("file", e.FilePath),
			slog.String("error", err.Error()))
	}
}

func (j *Journal) append(e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if dir := filepath.Dir(j.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}

// ReadFile parses a journal file. A missing file is an error; callers decide
// whether that is fatal.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses JSON lines, skipping blank or malformed lines and entries
// without a file path. Lines have no length limit.
func Read(r io.Reader) ([]Entry, error) {
	var entries []Entry
	br := bufio.NewReader(r)
	for {
		raw, err := br.ReadBytes('\n')
		if line := bytes.TrimSpace(raw); len(line) > 0 {
			var e Entry
			if json.Unmarshal(line, &e) == nil && e.FilePath != "" {
				entries = append(entries, e)
			}
		}
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, fmt.Errorf("read journal: %w", err)
		}
	}
}

// Exists reports whether the journal file is present.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
