package cache

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketListings = []byte("listings")
	bucketBrackets = []byte("brackets")
)

// Store is a small bbolt-backed cache of remote directory listings and the
// timestamp brackets derived from them. Scanning the planet server is
// expensive, so listings survive restarts.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the cache database under dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "underpass.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketListings, bucketBrackets} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// PutListing stores the ordered link list for one remote directory.
func (s *Store) PutListing(path string, links []string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(links)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketListings).Put([]byte(path), data)
	})
}

// GetListing returns the cached link list for a directory, or nil when the
// directory has never been scanned.
func (s *Store) GetListing(path string) ([]string, error) {
	var links []string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketListings).Get([]byte(path))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &links)
	})
	return links, err
}

// PutBracket stores the starting timestamp observed for one remote
// directory.
func (s *Store) PutBracket(path string, t time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := t.UTC().MarshalText()
		if err != nil {
			return err
		}
		return tx.Bucket(bucketBrackets).Put([]byte(path), data)
	})
}

// GetBracket returns the starting timestamp cached for a directory. The
// zero time means the directory has not been probed.
func (s *Store) GetBracket(path string) (time.Time, error) {
	var t time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketBrackets).Get([]byte(path))
		if data == nil {
			return nil
		}
		return t.UnmarshalText(data)
	})
	return t, err
}
