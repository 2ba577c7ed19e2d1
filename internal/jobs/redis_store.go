package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"studio/internal/domain"
)

const (
	snapshotKeyPrefix  = "studio:job:"
	eventChannelPrefix = "studio:job-events:"
	defaultSnapshotTTL = 24 * time.Hour
)

// RedisStore keeps snapshots as JSON values and publishes every save on a
// per-job channel so other API instances can stream progress.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, snapshotKeyPrefix+snap.JobID, data, s.ttl)
	pipe.Publish(ctx, eventChannelPrefix+snap.JobID, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (domain.Snapshot, error) {
	data, err := s.client.Get(ctx, snapshotKeyPrefix+jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *RedisStore) Delete(ctx context.Context, jobID string) error {
	return s.client.Del(ctx, snapshotKeyPrefix+jobID).Err()
}

// Subscribe streams snapshots published for jobID until ctx is done.
func (s *RedisStore) Subscribe(ctx context.Context, jobID string) <-chan domain.Snapshot {
	pubsub := s.client.Subscribe(ctx, eventChannelPrefix+jobID)
	out := make(chan domain.Snapshot)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var snap domain.Snapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
					continue
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
				if !snap.Generating {
					return
				}
			}
		}
	}()
	return out
}

var _ Store = (*RedisStore)(nil)
