package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

// ErrLocked is returned when another worker holds the repository lock.
var ErrLocked = errors.New("sync already running for repository")

const lockKeyPrefix = "vectorsync:lock:"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker serializes sync runs per repository across workers. Two runs on the
// same namespace would race their pre-delete and upsert steps.
type Locker struct {
	client valkey.Client
	ttl    time.Duration
}

func NewLocker(client valkey.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Locker{client: client, ttl: ttl}
}

// Lock is a held repository lock.
type Lock struct {
	client valkey.Client
	key    string
	token  string
}

// Acquire takes the lock for repo or returns ErrLocked. The lock expires after
// the TTL if the holder dies.
func (l *Locker) Acquire(ctx context.Context, repo string) (*Lock, error) {
	key := lockKeyPrefix + repo
	token := uuid.NewString()

	err := l.client.Do(ctx, l.client.B().Set().Key(key).Value(token).
		Nx().PxMilliseconds(l.ttl.Milliseconds()).Build()).Error()
	if valkey.IsValkeyNil(err) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, repo)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	return &Lock{client: l.client, key: key, token: token}, nil
}

// Release frees the lock if it is still ours.
func (k *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Exec(ctx, k.client, []string{k.key}, []string{k.token}).Error(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
