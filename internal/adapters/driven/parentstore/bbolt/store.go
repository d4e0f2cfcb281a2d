// Package bbolt persists parent records in a bolt file, one bucket per
// collection, keyed by node ID. Parents never go through vector search;
// they are fetched back by ID during auto-merge.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/custodia-labs/raglab-cli/internal/core/domain"
	"github.com/custodia-labs/raglab-cli/internal/core/ports/driven"
)

var _ driven.ParentStore = (*Store)(nil)

// Store is a bolt-backed ParentStore.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the parent store file.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create parent store dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open parent store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Put upserts parent records into the collection's bucket.
func (s *Store) Put(ctx context.Context, collection string, parents []domain.ParentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", collection, err)
		}
		for _, p := range parents {
			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("marshal parent %s: %w", p.ID, err)
			}
			if err := b.Put([]byte(p.ID), data); err != nil {
				return fmt.Errorf("put parent %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// GetMany fetches records by ID. Missing IDs are absent from the result.
func (s *Store) GetMany(ctx context.Context, collection string, ids []string) (map[string]domain.ParentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]domain.ParentRecord, len(ids))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		for _, id := range ids {
			data := b.Get([]byte(id))
			if data == nil {
				continue
			}
			var rec domain.ParentRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("unmarshal parent %s: %w", id, err)
			}
			out[id] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByFile removes every parent originating from fileName via a
// cursor scan of the collection's bucket.
func (s *Store) DeleteByFile(ctx context.Context, collection, fileName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec domain.ParentRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal parent %s: %w", k, err)
			}
			if rec.FileName != fileName {
				continue
			}
			if err := c.Delete(); err != nil {
				return fmt.Errorf("delete parent %s: %w", k, err)
			}
		}
		return nil
	})
}

// Close closes the bolt file.
func (s *Store) Close() error {
	return s.db.Close()
}
