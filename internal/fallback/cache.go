// Package fallback implements the bounded secondary persistence layer: a
// small bbolt key/value file recording the most recent writes so records
// survive failure or loss of the primary store. It is consulted only as a
// recovery source.
package fallback

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dsall/regvault/internal/models"
)

// DefaultCapacity bounds how many records the cache retains. When exceeded,
// the oldest entries by insertion order are dropped.
const DefaultCapacity = 500

var (
	bucketRecords = []byte("records")
	bucketOrder   = []byte("order") // seq -> id, insertion order
	bucketIndex   = []byte("index") // id -> seq, for replace semantics
)

// Cache is a capacity-bounded, most-recent-write-wins mapping from record
// id to client record, persisted independently of the primary engine.
type Cache struct {
	db       *bolt.DB
	capacity int
}

// Open opens (creating if necessary) the cache file at path.
func Open(path string, capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open fallback cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketRecords, bucketOrder, bucketIndex} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init fallback cache: %w", err)
	}
	return &Cache{db: db, capacity: capacity}, nil
}

// Close releases the underlying file.
func (c *Cache) Close() error {
	return c.db.Close()
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

// Put stores the record, replacing any previous entry with the same id and
// moving it to the newest position. When the capacity is exceeded the
// oldest entries are dropped.
func (c *Cache) Put(record models.Client) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		order := tx.Bucket(bucketOrder)
		index := tx.Bucket(bucketIndex)

		id := []byte(record.ID)

		// Replace semantics: drop the old position before re-appending.
		if old := index.Get(id); old != nil {
			if err := order.Delete(old); err != nil {
				return err
			}
		}

		seq, err := order.NextSequence()
		if err != nil {
			return err
		}
		if err := order.Put(seqKey(seq), id); err != nil {
			return err
		}
		if err := index.Put(id, seqKey(seq)); err != nil {
			return err
		}
		if err := records.Put(id, payload); err != nil {
			return err
		}

		// Truncate to capacity, oldest first. Bucket stats lag behind
		// uncommitted writes, so count through a cursor instead.
		for bucketLen(order) > c.capacity {
			cur := order.Cursor()
			k, v := cur.First()
			if k == nil {
				break
			}
			if err := order.Delete(k); err != nil {
				return err
			}
			if err := index.Delete(v); err != nil {
				return err
			}
			if err := records.Delete(v); err != nil {
				return err
			}
		}
		return nil
	})
}

func bucketLen(b *bolt.Bucket) int {
	n := 0
	_ = b.ForEach(func(_, _ []byte) error {
		n++
		return nil
	})
	return n
}

// GetAll returns every cached record in insertion order, oldest first.
func (c *Cache) GetAll() ([]models.Client, error) {
	var result []models.Client
	err := c.db.View(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		order := tx.Bucket(bucketOrder)
		return order.ForEach(func(_, id []byte) error {
			payload := records.Get(id)
			if payload == nil {
				return nil
			}
			var rec models.Client
			if err := json.Unmarshal(payload, &rec); err != nil {
				return fmt.Errorf("failed to deserialize record %s: %w", id, err)
			}
			result = append(result, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Len returns the number of cached records.
func (c *Cache) Len() (int, error) {
	var n int
	err := c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketRecords).Stats().KeyN
		return nil
	})
	return n, err
}
