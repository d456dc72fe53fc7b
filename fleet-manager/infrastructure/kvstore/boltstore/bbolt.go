package boltstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

const fileName = "quickfleet.db"

var bucketNameWatch = []byte("watch")

// Storage keeps every key in one bucket. bbolt fsyncs on each Update, so a
// mutation is durable once it returns.
type Storage struct {
	db *bolt.DB
}

func NewStore(dir string) (*Storage, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}

	db, err := bolt.Open(filepath.Join(dir, fileName), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketNameWatch)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketNameWatch).Get([]byte(key))
		if v == nil {
			return domain.ErrKeyNotFound
		}
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNameWatch).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, domain.ErrStorageFail)
	}
	return nil
}

func (s *Storage) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	created := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNameWatch)
		if b.Get([]byte(key)) != nil {
			return nil
		}
		created = true
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return false, fmt.Errorf("failed to put %s: %w", key, domain.ErrStorageFail)
	}
	return created, nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNameWatch).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, domain.ErrStorageFail)
	}
	return nil
}

func (s *Storage) Scan(ctx context.Context, prefix string) ([]domain.Item, error) {
	items := make([]domain.Item, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketNameWatch).Cursor()

		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			items = append(items, domain.Item{
				Key:   string(k),
				Value: append([]byte(nil), v...),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", prefix, domain.ErrStorageFail)
	}
	return items, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}
