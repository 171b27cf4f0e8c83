package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

const (
	StreamName = "vectorsync:jobs"
	GroupName  = "vectorsync-workers"
)

// Job triggers.
const (
	TriggerWebhook  = "webhook"
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerMCP      = "mcp"
)

// SyncJob is the payload enqueued for worker processing.
type SyncJob struct {
	ID         string   `json:"id"`
	Mode       Mode     `json:"mode"`
	Files      []string `json:"files,omitempty"`
	FromCommit string   `json:"from_commit,omitempty"`
	ToCommit   string   `json:"to_commit,omitempty"`
	Trigger    string   `json:"trigger"` // "webhook", "manual", "schedule", "mcp"
}

// NewSyncJob assigns an id to the job.
func NewSyncJob(mode Mode, trigger string) SyncJob {
	return SyncJob{ID: uuid.NewString(), Mode: mode, Trigger: trigger}
}

// Validate checks that the job names a mode with the inputs it needs.
func (j SyncJob) Validate() error {
	switch j.Mode {
	case ModeReindexAll, ModeRetry:
		return nil
	case ModeFiles:
		if len(j.Files) == 0 {
			return fmt.Errorf("files job requires at least one file")
		}
		if _, err := ParseFileTokens(j.Files); err != nil {
			return err
		}
		return nil
	case ModeCommitRange:
		if j.FromCommit == "" {
			return fmt.Errorf("commit-range job requires from_commit")
		}
		return nil
	default:
		return fmt.Errorf("unsupported job mode %q", j.Mode)
	}
}

// Request converts the job into a resolver request. journalPath is replayed
// for retry jobs.
func (j SyncJob) Request(journalPath string) Request {
	switch j.Mode {
	case ModeReindexAll:
		return Request{ReindexAll: true}
	case ModeFiles:
		return Request{Files: j.Files}
	case ModeRetry:
		return Request{RetryErrors: journalPath}
	default:
		to := j.ToCommit
		if to == "" {
			to = "HEAD"
		}
		return Request{FromCommit: j.FromCommit, ToCommit: to}
	}
}

// Producer enqueues sync jobs to the Valkey stream.
type Producer struct {
	client valkey.Client
}

func NewProducer(client valkey.Client) *Producer {
	return &Producer{client: client}
}

func (p *Producer) Enqueue(ctx context.Context, job SyncJob) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	resp := p.client.Do(ctx, p.client.B().Xadd().
		Key(StreamName).Id("*").
		FieldValue().FieldValue("data", string(data)).
		Build())
	if err := resp.Error(); err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	id, err := resp.ToString()
	if err != nil {
		return "", fmt.Errorf("parse xadd response: %w", err)
	}
	return id, nil
}

// DefaultReclaimIdle is how long a delivered job may stay unacknowledged
// before another read claims it again.
const DefaultReclaimIdle = time.Minute

// Consumer reads sync jobs from the Valkey stream.
type Consumer struct {
	client      valkey.Client
	consumerID  string
	reclaimIdle time.Duration
	logger      *slog.Logger
}

// NewConsumer returns a consumer in GroupName. Jobs left unacknowledged for
// reclaimIdle, by this or any other consumer, are claimed and handled again.
func NewConsumer(client valkey.Client, consumerID string, reclaimIdle time.Duration, logger *slog.Logger) *Consumer {
	if reclaimIdle <= 0 {
		reclaimIdle = DefaultReclaimIdle
	}
	return &Consumer{client: client, consumerID: consumerID, reclaimIdle: reclaimIdle, logger: logger}
}

// EnsureGroup creates the consumer group if it doesn't exist.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	resp := c.client.Do(ctx, c.client.B().XgroupCreate().
		Key(StreamName).Group(GroupName).Id("0").Mkstream().Build())
	if err := resp.Error(); err != nil {
		// BUSYGROUP means the group already exists
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return fmt.Errorf("xgroup create: %w", err)
		}
	}
	return nil
}

// Consume blocks until a job is available, processes it via handler, and ACKs.
// Jobs left pending by a previous crash of this consumer are handled first.
// A job whose handler fails stays pending and is claimed again once it has
// been idle for the reclaim interval.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, SyncJob) error) error {
	ticker := time.NewTicker(c.reclaimIdle)
	defer ticker.Stop()
	return consumeLoop(ctx, c, c.logger, handler, ticker.C)
}

// jobStream is the set of stream reads the consume loop drives.
type jobStream interface {
	pending(ctx context.Context) ([]valkey.XRangeEntry, error)
	claimIdle(ctx context.Context) ([]valkey.XRangeEntry, error)
	readNew(ctx context.Context) ([]valkey.XRangeEntry, error)
	ack(ctx context.Context, id string)
}

func consumeLoop(ctx context.Context, s jobStream, logger *slog.Logger, handler func(context.Context, SyncJob) error, reclaim <-chan time.Time) error {
	recoverFrom := func(read func(context.Context) ([]valkey.XRangeEntry, error)) {
		msgs, err := read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("recover pending jobs failed", slog.String("error", err.Error()))
			}
			return
		}
		for _, msg := range msgs {
			logger.Info("recovering pending job", slog.String("id", msg.ID))
			processMessage(ctx, s, logger, msg, handler)
		}
	}

	recoverFrom(s.pending)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reclaim:
			recoverFrom(s.claimIdle)
			continue
		default:
		}

		msgs, err := s.readNew(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Timeout is normal for BLOCK reads
			continue
		}
		for _, msg := range msgs {
			processMessage(ctx, s, logger, msg, handler)
		}
	}
}

func processMessage(ctx context.Context, s jobStream, logger *slog.Logger, msg valkey.XRangeEntry, handler func(context.Context, SyncJob) error) {
	job, err := decodeJob(msg.FieldValues)
	if err != nil {
		logger.Error("drop malformed job", slog.String("error", err.Error()), slog.String("id", msg.ID))
		s.ack(ctx, msg.ID)
		return
	}

	if err := handler(ctx, job); err != nil {
		logger.Error("handle job", slog.String("error", err.Error()),
			slog.String("id", msg.ID),
			slog.String("job_id", job.ID))
		return
	}
	s.ack(ctx, msg.ID)
}

// pending returns jobs delivered to this consumer but never acknowledged.
func (c *Consumer) pending(ctx context.Context) ([]valkey.XRangeEntry, error) {
	resp := c.client.Do(ctx, c.client.B().Xreadgroup().
		Group(GroupName, c.consumerID).
		Count(10).
		Streams().Key(StreamName).Id("0").
		Build())
	return flattenXRead(resp)
}

func (c *Consumer) readNew(ctx context.Context) ([]valkey.XRangeEntry, error) {
	resp := c.client.Do(ctx, c.client.B().Xreadgroup().
		Group(GroupName, c.consumerID).
		Count(1).Block(5000).
		Streams().Key(StreamName).Id(">").
		Build())
	return flattenXRead(resp)
}

// claimIdle takes over jobs idle for at least reclaimIdle from any consumer
// in the group, including this one.
func (c *Consumer) claimIdle(ctx context.Context) ([]valkey.XRangeEntry, error) {
	resp := c.client.Do(ctx, c.client.B().Xautoclaim().
		Key(StreamName).Group(GroupName).Consumer(c.consumerID).
		MinIdleTime(strconv.FormatInt(c.reclaimIdle.Milliseconds(), 10)).
		Start("0-0").Count(10).
		Build())
	parts, err := resp.ToArray()
	if err != nil {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("xautoclaim: unexpected reply of %d elements", len(parts))
	}
	entries, err := parts[1].ToArray()
	if err != nil {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	out := make([]valkey.XRangeEntry, 0, len(entries))
	for _, e := range entries {
		// Entries trimmed from the stream come back as nil.
		msg, err := e.AsXRangeEntry()
		if err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func flattenXRead(resp valkey.ValkeyResult) ([]valkey.XRangeEntry, error) {
	if err := resp.Error(); err != nil {
		return nil, err
	}
	results, err := resp.AsXRead()
	if err != nil {
		return nil, err
	}
	var out []valkey.XRangeEntry
	for _, messages := range results {
		out = append(out, messages...)
	}
	return out, nil
}

func decodeJob(fields map[string]string) (SyncJob, error) {
	data, ok := fields["data"]
	if !ok {
		return SyncJob{}, fmt.Errorf("message missing data field")
	}
	var job SyncJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return SyncJob{}, fmt.Errorf("unmarshal job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return SyncJob{}, err
	}
	return job, nil
}

func (c *Consumer) ack(ctx context.Context, msgID string) {
	resp := c.client.Do(ctx, c.client.B().Xack().
		Key(StreamName).Group(GroupName).Id(msgID).Build())
	if err := resp.Error(); err != nil {
		c.logger.Error("xack failed", slog.String("error", err.Error()), slog.String("id", msgID))
	}
}
