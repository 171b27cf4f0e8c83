package ingestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/maraichr/vectorsync/internal/journal"
)

// JobQueue accepts sync jobs.
type JobQueue interface {
	Enqueue(ctx context.Context, job SyncJob) (string, error)
}

// RetryScheduler enqueues a retry job whenever the failure journal exists.
type RetryScheduler struct {
	queue       JobQueue
	journalPath string
	interval    time.Duration
	logger      *slog.Logger
}

func NewRetryScheduler(queue JobQueue, journalPath string, interval time.Duration, logger *slog.Logger) *RetryScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetryScheduler{queue: queue, journalPath: journalPath, interval: interval, logger: logger}
}

// Run ticks until ctx is done.
func (s *RetryScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("retry scheduler started",
		slog.Duration("interval", s.interval),
		slog.String("journal", s.journalPath))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("enqueue retry job", slog.String("error", err.Error()))
			}
		}
	}
}

// Tick enqueues one retry job when there is something to retry. It reports
// whether a job was enqueued.
func (s *RetryScheduler) Tick(ctx context.Context) (bool, error) {
	if !journal.Exists(s.journalPath) {
		s.logger.Debug("no failure journal, nothing to retry")
		return false, nil
	}
	job := NewSyncJob(ModeRetry, TriggerSchedule)
	msgID, err := s.queue.Enqueue(ctx, job)
	if err != nil {
		return false, err
	}
	s.logger.Info("retry job enqueued", slog.String("job_id", job.ID), slog.String("message_id", msgID))
	return true, nil
}
