package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/gyaneshwarpardhi/dashboardr/internal/config"
	"github.com/gyaneshwarpardhi/dashboardr/internal/event"
)

// Redis keeps events in a single hash (field = id, value = JSON record) and
// meta scalars under plain keys. Mutations run inside MULTI/EXEC.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, conf config.RedisConf) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", conf.Addr, err)
	}
	return NewRedis(client, conf.KeyPrefix), nil
}

func (r *Redis) eventsKey() string {
	return r.prefix + "events"
}

func (r *Redis) metaKey(key string) string {
	return r.prefix + "meta:" + key
}

func (r *Redis) PutAll(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}
	fields := make([]interface{}, 0, len(events)*2)
	for _, ev := range events {
		if ev.ID == "" {
			return writeErr(errMissingID)
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return writeErr(fmt.Errorf("encode event %s: %w", ev.ID, err))
		}
		fields = append(fields, string(ev.ID), data)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.eventsKey(), fields...)
		return nil
	})
	if err != nil {
		return writeErr(err)
	}
	return nil
}

func (r *Redis) DeleteByID(ctx context.Context, id event.ID) error {
	if id == "" {
		return deleteErr(errMissingID)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, r.eventsKey(), string(id))
		return nil
	})
	if err != nil {
		return deleteErr(err)
	}
	return nil
}

func (r *Redis) GetAll(ctx context.Context) ([]event.Event, error) {
	all, err := r.client.HGetAll(ctx, r.eventsKey()).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]event.Event, 0, len(ids))
	for _, id := range ids {
		var ev event.Event
		if err := json.Unmarshal([]byte(all[id]), &ev); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", id, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.metaKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.metaKey(key), value, 0).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
