package persistence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/fluxbuf/pkg/api"
)

// RedisEventStore is an EventStore backed by Redis lists. It uses one key
// per session of each run:
//
//	<prefix>events:<run>:<session>  => LIST of gob-encoded events, oldest first
//	<prefix>idx:sessions:<run>      => SET of sessions of run that have history
//	<prefix>idx:runs                => SET of runs that have history
type RedisEventStore struct {
	client *redis.Client
	prefix string
}

var _ EventStore = (*RedisEventStore)(nil)

// NewRedisEventStore creates a RedisEventStore.
// prefix is optional but recommended (e.g. "fluxbuf:").
func NewRedisEventStore(client *redis.Client, prefix string) *RedisEventStore {
	if prefix == "" {
		prefix = "fluxbuf:"
	}
	return &RedisEventStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisEventStore) keyEvents(run string, session api.Entity) string {
	return s.prefix + "events:" + run + ":" + session.String()
}

func (s *RedisEventStore) keySessions(run string) string {
	return s.prefix + "idx:sessions:" + run
}

func (s *RedisEventStore) keyRuns() string {
	return s.prefix + "idx:runs"
}

func (s *RedisEventStore) AppendEvent(ctx context.Context, ev api.BufferEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	data, err := EncodeEvent(ev)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.keyEvents(ev.Run, ev.Session), data)
	pipe.SAdd(ctx, s.keySessions(ev.Run), ev.Session.String())
	pipe.SAdd(ctx, s.keyRuns(), ev.Run)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisEventStore) ListEvents(ctx context.Context, run string, session api.Entity) ([]api.BufferEvent, error) {
	raw, err := s.client.LRange(ctx, s.keyEvents(run, session), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]api.BufferEvent, 0, len(raw))
	for _, r := range raw {
		ev, err := DecodeEvent([]byte(r))
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// Runs lists the runs that have recorded history.
func (s *RedisEventStore) Runs(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, s.keyRuns()).Result()
}

// Sessions lists the sessions of run that have recorded history.
func (s *RedisEventStore) Sessions(ctx context.Context, run string) ([]api.Entity, error) {
	members, err := s.client.SMembers(ctx, s.keySessions(run)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]api.Entity, 0, len(members))
	for _, m := range members {
		e, err := api.ParseEntity(m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
