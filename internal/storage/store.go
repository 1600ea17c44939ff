package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/pders01/feedscout/internal/validation"
)

var (
	sourcesBucket  = []byte("sources")
	urlIndexBucket = []byte("url_index")
	removalsBucket = []byte("removals")
)

var ErrNotFound = errors.New("feed source not found")

type Store struct {
	db *bolt.DB
}

func NewStore(dbPath string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{sourcesBucket, urlIndexBucket, removalsBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSource inserts or updates a source, assigning an ID and timestamps to
// new ones. The URL index follows address changes.
func (s *Store) SaveSource(src *FeedSource) error {
	now := time.Now()
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if src.AddedAt.IsZero() {
		src.AddedAt = now
	}
	src.UpdatedAt = now

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sourcesBucket)
		idx := tx.Bucket(urlIndexBucket)

		if old := b.Get([]byte(src.ID)); old != nil {
			var prev FeedSource
			if err := json.Unmarshal(old, &prev); err == nil {
				if err := idx.Delete(urlKey(prev.URL)); err != nil {
					return err
				}
			}
		}

		data, err := json.Marshal(src)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(src.ID), data); err != nil {
			return err
		}
		return idx.Put(urlKey(src.URL), []byte(src.ID))
	})
}

func urlKey(rawURL string) []byte {
	return []byte(validation.NormalizeURL(rawURL))
}

func (s *Store) GetSource(id string) (*FeedSource, error) {
	var src FeedSource
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(sourcesBucket).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &src)
	})
	if err != nil {
		return nil, err
	}
	return &src, nil
}

// FindByURL looks a source up by any spelling of its address.
func (s *Store) FindByURL(rawURL string) (*FeedSource, error) {
	var id []byte
	s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(urlIndexBucket).Get(urlKey(rawURL)); v != nil {
			id = append([]byte(nil), v...)
		}
		return nil
	})
	if id == nil {
		return nil, ErrNotFound
	}
	return s.GetSource(string(id))
}

// AllSources returns the collection in the order it was built.
func (s *Store) AllSources() ([]*FeedSource, error) {
	var sources []*FeedSource
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(sourcesBucket).ForEach(func(_ []byte, v []byte) error {
			var src FeedSource
			if err := json.Unmarshal(v, &src); err != nil {
				return err
			}
			sources = append(sources, &src)
			return nil
		})
	})
	sort.SliceStable(sources, func(i, j int) bool {
		if !sources[i].AddedAt.Equal(sources[j].AddedAt) {
			return sources[i].AddedAt.Before(sources[j].AddedAt)
		}
		return strings.ToLower(sources[i].DisplayTitle()) < strings.ToLower(sources[j].DisplayTitle())
	})
	return sources, err
}

func (s *Store) DeleteSource(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sourcesBucket)
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		var src FeedSource
		if err := json.Unmarshal(data, &src); err == nil {
			idx := tx.Bucket(urlIndexBucket)
			if owner := idx.Get(urlKey(src.URL)); string(owner) == id {
				if err := idx.Delete(urlKey(src.URL)); err != nil {
					return err
				}
			}
		}
		return b.Delete([]byte(id))
	})
}

// RecordRemovals deletes each removed source and keeps an audit record of
// what it duplicated, all in one transaction.
func (s *Store) RecordRemovals(removals []Removal) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		sources := tx.Bucket(sourcesBucket)
		idx := tx.Bucket(urlIndexBucket)
		audit := tx.Bucket(removalsBucket)

		for i := range removals {
			r := &removals[i]
			if r.RemovedAt.IsZero() {
				r.RemovedAt = time.Now()
			}
			if err := sources.Delete([]byte(r.Source.ID)); err != nil {
				return err
			}
			if owner := idx.Get(urlKey(r.Source.URL)); string(owner) == r.Source.ID {
				if err := idx.Delete(urlKey(r.Source.URL)); err != nil {
					return err
				}
			}

			data, err := json.Marshal(r)
			if err != nil {
				return err
			}
			seq, err := audit.NextSequence()
			if err != nil {
				return err
			}
			if err := audit.Put([]byte(fmt.Sprintf("%020d", seq)), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Removals returns the audit log, oldest first.
func (s *Store) Removals() ([]Removal, error) {
	var out []Removal
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(removalsBucket).ForEach(func(_ []byte, v []byte) error {
			var r Removal
			if err := json.Unmarshal(v, &r); err != nil {
				return nil
			}
			out = append(out, r)
			return nil
		})
	})
	return out, err
}
