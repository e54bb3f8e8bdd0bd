package ratelimit

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketCounters = []byte("ratelimit")

// BoltCounters stores counters in their own bucket of the shared DB
// file. bbolt serializes writers, which gives Update the required
// atomicity for free.
type BoltCounters struct {
	db *bolt.DB
}

func NewBoltCounters(db *bolt.DB) (*BoltCounters, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCounters)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("init ratelimit bucket: %w", err)
	}
	return &BoltCounters{db: db}, nil
}

func (s *BoltCounters) Update(userID string, fn func(c *Counter) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCounters)
		var c Counter
		if v := b.Get([]byte(userID)); v != nil {
			if err := json.Unmarshal(v, &c); err != nil {
				// malformed counter -> start fresh
				c = Counter{}
			}
		}
		if err := fn(&c); err != nil {
			// returning the error rolls the transaction back, leaving
			// the stored counter untouched
			return err
		}
		raw, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode counter: %w", err)
		}
		return b.Put([]byte(userID), raw)
	})
}

// Prune drops counters whose window ended before cutoff. Counters decay
// naturally as windows roll over; this only keeps the bucket bounded.
func (s *BoltCounters) Prune(cutoff time.Time) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCounters)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var cnt Counter
			if err := json.Unmarshal(v, &cnt); err == nil && cnt.WindowStart.After(cutoff) {
				continue
			}
			if err := c.Delete(); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
