package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var bucketIndexes = []byte("indexes")

// BoltRepository stores each session index as one JSON value. A bolt write
// transaction replaces it atomically, so readers see the old or the new index.
type BoltRepository struct {
	db *bbolt.DB
}

var _ Repository = (*BoltRepository)(nil)

func NewBoltRepository(path string) (*BoltRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIndexes)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltRepository{db: db}, nil
}

func (r *BoltRepository) Load(ctx context.Context, session string) (*Index, error) {
	var idx Index
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketIndexes).Get([]byte(session))
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, &idx); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &idx, nil
}

func (r *BoltRepository) Save(ctx context.Context, session string, idx *Index) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIndexes).Put([]byte(session), data)
	})
}

func (r *BoltRepository) Drop(ctx context.Context, session string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIndexes).Delete([]byte(session))
	})
}

func (r *BoltRepository) Close() error {
	return r.db.Close()
}
