package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

const (
	DefaultNamespace = "quickfleet:"
	scanCount        = 100
)

// Storage writes every key without expiry. Durability follows the server's
// persistence settings (AOF with appendfsync always for crash safety).
type Storage struct {
	client    *redis.Client
	namespace string
}

func NewClient(addr, password string) (*redis.Client, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewStore(client *redis.Client, namespace string) *Storage {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Storage{
		client:    client,
		namespace: namespace,
	}
}

func (s *Storage) key(k string) string {
	return s.namespace + k
}

func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w: %v", key, domain.ErrStorageFail, err)
	}
	return data, nil
}

func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w: %v", key, domain.ErrStorageFail, err)
	}
	return nil
}

func (s *Storage) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	created, err := s.client.SetNX(ctx, s.key(key), value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set %s: %w: %v", key, domain.ErrStorageFail, err)
	}
	return created, nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w: %v", key, domain.ErrStorageFail, err)
	}
	return nil
}

func (s *Storage) Scan(ctx context.Context, prefix string) ([]domain.Item, error) {
	pattern := escapeGlob(s.key(prefix)) + "*"

	keys := make([]string, 0)
	iter := s.client.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w: %v", prefix, domain.ErrStorageFail, err)
	}

	items := make([]domain.Item, 0, len(keys))
	if len(keys) == 0 {
		return items, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w: %v", prefix, domain.ErrStorageFail, err)
	}
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// deleted between SCAN and MGET
			continue
		}
		items = append(items, domain.Item{
			Key:   strings.TrimPrefix(keys[i], s.namespace),
			Value: []byte(str),
		})
	}
	return items, nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
