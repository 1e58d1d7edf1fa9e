// Package session keeps the cashier CLI's local state in a bbolt file: the
// backend token and the last known-good shift snapshot. The snapshot is a
// display fallback for when the backend is unreachable, never the source of
// truth.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shiftpos/internal/model"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketName = []byte("session")
	currentKey = []byte("current")
)

// Session is what survives between CLI invocations.
type Session struct {
	APIURL    string       `json:"api_url"`
	Token     string       `json:"token"`
	CashierID uuid.UUID    `json:"cashier_id"`
	Shift     *model.Shift `json:"shift,omitempty"`
	SavedAt   time.Time    `json:"saved_at"`
}

type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open creates the file and bucket if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the saved session, or nil when there is none.
func (s *Store) Load() (*Session, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	var out *Session
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get(currentKey)
		if raw == nil {
			return nil
		}
		var sess Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			return fmt.Errorf("session: corrupt entry: %w", err)
		}
		out = &sess
		return nil
	})
	return out, err
}

func (s *Store) Save(sess *Session) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if sess == nil {
		return errors.New("session: nil session")
	}
	sess.SavedAt = s.now().UTC()
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(currentKey, raw)
	})
}

// Clear forgets the token and the snapshot.
func (s *Store) Clear() error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(currentKey)
	})
}
