package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

// Storage keeps keys in process memory. Nothing survives a restart.
type Storage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewStore() *Storage {
	return &Storage{data: make(map[string][]byte)}
}

func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *Storage) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = append([]byte(nil), value...)
	return true, nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Storage) Scan(ctx context.Context, prefix string) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.Item, 0)
	for k, v := range s.data {
		if strings.HasPrefix(k, prefix) {
			items = append(items, domain.Item{Key: k, Value: append([]byte(nil), v...)})
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Key < items[j].Key
	})
	return items, nil
}

func (s *Storage) Close() error {
	return nil
}
