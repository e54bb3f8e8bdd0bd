package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"turbolearn/internal/auth"
)

// Session groups all turns of one conversation topic, across providers.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Turn is one persisted message. Turns are immutable once written and
// ordered within a (session, provider) pair by insertion.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Image     string    `json:"image,omitempty"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	bucketUsers    = []byte("users")
	bucketSessions = []byte("sessions")
	bucketTurns    = []byte("turns")
)

// Store keeps all documents in a single bbolt file, one bucket per
// logical dataset.
type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketSessions, bucketTurns} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle so sibling packages can keep their
// own buckets in the same file.
func (s *Store) DB() *bolt.DB { return s.db }

// --- users (auth.Directory) ---

func (s *Store) GetUser(_ context.Context, id string) (auth.User, bool, error) {
	var u auth.User
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUsers).Get([]byte(id))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &u); err != nil {
			return fmt.Errorf("decode user %s: %w", id, err)
		}
		found = true
		return nil
	})
	return u, found, err
}

func (s *Store) PutUser(_ context.Context, u auth.User) error {
	if u.ID == "" {
		return fmt.Errorf("user id is empty")
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUsers).Put([]byte(u.ID), raw)
	})
}

func (s *Store) ListUsers(_ context.Context) ([]auth.User, error) {
	var out []auth.User
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(_, v []byte) error {
			var u auth.User
			if err := json.Unmarshal(v, &u); err != nil {
				// Skip malformed entries instead of failing the whole list
				return nil
			}
			out = append(out, u)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- sessions ---

func (s *Store) CreateSession(userID, title string, now time.Time) (Session, error) {
	sess := Session{ID: uuid.NewString(), UserID: userID, Title: title, CreatedAt: now}
	raw, err := json.Marshal(sess)
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).Put([]byte(sess.ID), raw)
	})
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Store) GetSession(id string) (Session, bool, error) {
	var sess Session
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSessions).Get([]byte(id))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &sess); err != nil {
			return fmt.Errorf("decode session %s: %w", id, err)
		}
		found = true
		return nil
	})
	return sess, found, err
}

// SessionsByUser returns the user's sessions, newest first.
func (s *Store) SessionsByUser(userID string) ([]Session, error) {
	var out []Session
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(_, v []byte) error {
			var sess Session
			if err := json.Unmarshal(v, &sess); err != nil {
				return nil
			}
			if sess.UserID == userID {
				out = append(out, sess)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteSession removes the session and every turn it owns.
func (s *Store) DeleteSession(id string) error {
	prefix := turnPrefix(id)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketSessions).Delete([]byte(id)); err != nil {
			return err
		}
		c := tx.Bucket(bucketTurns).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- turns ---

func turnPrefix(sessionID string) []byte {
	return []byte(sessionID + "/")
}

// AppendTurn persists one turn. Keys carry a per-bucket sequence so a
// prefix scan yields turns in append order.
func (s *Store) AppendTurn(t Turn) (Turn, error) {
	if t.SessionID == "" {
		return Turn{}, fmt.Errorf("turn has no session id")
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTurns)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		t.ID = fmt.Sprintf("%s/%016x", t.SessionID, seq)
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
		return b.Put([]byte(t.ID), raw)
	})
	if err != nil {
		return Turn{}, err
	}
	return t, nil
}

// TurnsBySession returns the session's turns in append order. When
// provider is non-empty only that provider's log is returned.
func (s *Store) TurnsBySession(sessionID, provider string) ([]Turn, error) {
	prefix := turnPrefix(sessionID)
	var out []Turn
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTurns).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var t Turn
			if err := json.Unmarshal(v, &t); err != nil {
				continue
			}
			if provider != "" && t.Provider != provider {
				continue
			}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
