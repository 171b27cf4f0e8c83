package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/valkey-io/valkey-go"
)

func TestSyncJob_Request(t *testing.T) {
	tests := []struct {
		name string
		job  SyncJob
		want Request
	}{
		{"reindex", SyncJob{Mode: ModeReindexAll}, Request{ReindexAll: true}},
		{"files", SyncJob{Mode: ModeFiles, Files: []string{"A:a.md"}}, Request{Files: []string{"A:a.md"}}},
		{"retry", SyncJob{Mode: ModeRetry}, Request{RetryErrors: "errors.jsonl"}},
		{"range defaults head", SyncJob{Mode: ModeCommitRange, FromCommit: "abc"}, Request{FromCommit: "abc", ToCommit: "HEAD"}},
		{"range", SyncJob{Mode: ModeCommitRange, FromCommit: "abc", ToCommit: "def"}, Request{FromCommit: "abc", ToCommit: "def"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.job.Request("errors.jsonl"); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSyncJob_Validate(t *testing.T) {
	tests := []struct {
		name    string
		job     SyncJob
		wantErr bool
	}{
		{"reindex", SyncJob{Mode: ModeReindexAll}, false},
		{"retry", SyncJob{Mode: ModeRetry}, false},
		{"files", SyncJob{Mode: ModeFiles, Files: []string{"M:a.md"}}, false},
		{"files empty", SyncJob{Mode: ModeFiles}, true},
		{"files bad status", SyncJob{Mode: ModeFiles, Files: []string{"Q:a.md"}}, true},
		{"range without from", SyncJob{Mode: ModeCommitRange}, true},
		{"listing not queueable", SyncJob{Mode: ModeListing}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeJob(t *testing.T) {
	job := NewSyncJob(ModeCommitRange, TriggerWebhook)
	job.FromCommit = "a1"
	job.ToCommit = "b2"
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}

	got, err := decodeJob(map[string]string{"data": string(data)})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, job) {
		t.Errorf("got %+v, want %+v", got, job)
	}

	if _, err := decodeJob(map[string]string{}); err == nil {
		t.Error("expected error for missing data field")
	}
	if _, err := decodeJob(map[string]string{"data": "{"}); err == nil {
		t.Error("expected error for malformed json")
	}
	if _, err := decodeJob(map[string]string{"data": `{"mode":"bogus"}`}); err == nil {
		t.Error("expected error for unknown mode")
	}
}

// memStream tracks deliveries like a consumer group with a single consumer.
type memStream struct {
	fresh   []valkey.XRangeEntry
	unacked map[string]valkey.XRangeEntry
	acked   []string
	claims  int
	onAck   func(id string)
}

func newMemStream(entries ...valkey.XRangeEntry) *memStream {
	return &memStream{fresh: entries, unacked: map[string]valkey.XRangeEntry{}}
}

func (m *memStream) pending(context.Context) ([]valkey.XRangeEntry, error) { return nil, nil }

func (m *memStream) claimIdle(context.Context) ([]valkey.XRangeEntry, error) {
	m.claims++
	var out []valkey.XRangeEntry
	for _, e := range m.unacked {
		out = append(out, e)
	}
	return out, nil
}

func (m *memStream) readNew(ctx context.Context) ([]valkey.XRangeEntry, error) {
	if len(m.fresh) == 0 {
		select {
		case <-ctx.Done():
		case <-time.After(time.Millisecond):
		}
		return nil, errors.New("valkey nil message")
	}
	e := m.fresh[0]
	m.fresh = m.fresh[1:]
	m.unacked[e.ID] = e
	return []valkey.XRangeEntry{e}, nil
}

func (m *memStream) ack(_ context.Context, id string) {
	delete(m.unacked, id)
	m.acked = append(m.acked, id)
	if m.onAck != nil {
		m.onAck(id)
	}
}

func jobEntry(t *testing.T, id string, job SyncJob) valkey.XRangeEntry {
	t.Helper()
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	return valkey.XRangeEntry{ID: id, FieldValues: map[string]string{"data": string(data)}}
}

func TestConsumeLoop_FailedJobIsClaimedAgain(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job := NewSyncJob(ModeReindexAll, TriggerWebhook)
	stream := newMemStream(
		jobEntry(t, "1-0", job),
		valkey.XRangeEntry{ID: "2-0", FieldValues: map[string]string{}},
	)
	stream.onAck = func(string) {
		if len(stream.acked) == 2 {
			cancel()
		}
	}

	calls := 0
	handler := func(_ context.Context, got SyncJob) error {
		calls++
		if got.ID != job.ID {
			t.Errorf("unexpected job %+v", got)
		}
		if calls == 1 {
			return errors.New("sync already running for this repository")
		}
		return nil
	}

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	err := consumeLoop(ctx, stream, discardLogger(), handler, ticker.C)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the loop to stop on cancel, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected the failed job to be handled twice, got %d", calls)
	}
	if stream.claims == 0 {
		t.Error("expected at least one claim of idle jobs")
	}
	acked := append([]string(nil), stream.acked...)
	sort.Strings(acked)
	if !reflect.DeepEqual(acked, []string{"1-0", "2-0"}) {
		t.Errorf("expected the malformed job dropped and the retried job acked, got %v", stream.acked)
	}
	if len(stream.unacked) != 0 {
		t.Errorf("jobs left pending: %v", stream.unacked)
	}
}

func TestConsumeLoop_HandlesStartupPendingFirst(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job := NewSyncJob(ModeRetry, TriggerManual)
	stream := &startupStream{memStream: newMemStream(), leftover: jobEntry(t, "0-1", job)}
	stream.onAck = func(string) { cancel() }

	var handled []string
	handler := func(_ context.Context, got SyncJob) error {
		handled = append(handled, got.ID)
		return nil
	}

	err := consumeLoop(ctx, stream, discardLogger(), handler, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the loop to stop on cancel, got %v", err)
	}
	if !reflect.DeepEqual(handled, []string{job.ID}) {
		t.Errorf("expected the leftover job handled once, got %v", handled)
	}
}

// startupStream holds one job delivered before the consumer restarted.
type startupStream struct {
	*memStream
	leftover valkey.XRangeEntry
}

func (s *startupStream) pending(context.Context) ([]valkey.XRangeEntry, error) {
	return []valkey.XRangeEntry{s.leftover}, nil
}
