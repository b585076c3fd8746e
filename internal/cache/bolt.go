package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/gyaneshwarpardhi/dashboardr/internal/event"
)

var (
	eventsBucket = []byte("events")
	metaBucket   = []byte("meta")
)

// Bolt keeps events in a bbolt file. Each mutation is a single read-write
// transaction, which bbolt rolls back when the closure returns an error.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the database file and ensures both buckets exist.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(eventsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets in %s: %w", path, err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) PutAll(ctx context.Context, events []event.Event) error {
	if err := ctx.Err(); err != nil {
		return writeErr(err)
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(eventsBucket)
		for _, ev := range events {
			if ev.ID == "" {
				return errMissingID
			}
			data, err := json.Marshal(ev)
			if err != nil {
				return fmt.Errorf("encode event %s: %w", ev.ID, err)
			}
			if err := bkt.Put([]byte(ev.ID), data); err != nil {
				return fmt.Errorf("put event %s: %w", ev.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return writeErr(err)
	}
	return nil
}

func (b *Bolt) DeleteByID(ctx context.Context, id event.ID) error {
	if err := ctx.Err(); err != nil {
		return deleteErr(err)
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		if id == "" {
			return errMissingID
		}
		return tx.Bucket(eventsBucket).Delete([]byte(id))
	})
	if err != nil {
		return deleteErr(err)
	}
	return nil
}

func (b *Bolt) GetAll(ctx context.Context) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []event.Event
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(eventsBucket).ForEach(func(k, v []byte) error {
			var ev event.Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("decode event %s: %w", k, err)
			}
			out = append(out, ev)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Bolt) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	var (
		val   string
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(metaBucket).Get([]byte(key)); v != nil {
			val, found = string(v), true
		}
		return nil
	})
	return val, found, err
}

func (b *Bolt) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put([]byte(key), []byte(value))
	})
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
