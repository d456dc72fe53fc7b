// Package kvstoretest checks a domain.KeyValueStore implementation against
// the behaviour the watch list relies on.
package kvstoretest

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

func Run(t *testing.T, newStore func(t *testing.T) domain.KeyValueStore) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(context.Background(), "watch:none"); !errors.Is(err, domain.ErrKeyNotFound) {
			t.Errorf("Get() error = %v, want ErrKeyNotFound", err)
		}
	})

	t.Run("SetGet", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		if err := s.Set(ctx, "watch:i-001", []byte(`{"a":1}`)); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := s.Set(ctx, "watch:i-001", []byte(`{"a":2}`)); err != nil {
			t.Fatalf("Set() overwrite error = %v", err)
		}
		got, err := s.Get(ctx, "watch:i-001")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(got) != `{"a":2}` {
			t.Errorf("Get() = %s", got)
		}
	})

	t.Run("SetIfAbsent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		created, err := s.SetIfAbsent(ctx, "watch:i-001", []byte("first"))
		if err != nil || !created {
			t.Fatalf("first SetIfAbsent() = %v, %v", created, err)
		}
		created, err = s.SetIfAbsent(ctx, "watch:i-001", []byte("second"))
		if err != nil || created {
			t.Fatalf("second SetIfAbsent() = %v, %v", created, err)
		}
		got, _ := s.Get(ctx, "watch:i-001")
		if string(got) != "first" {
			t.Errorf("value = %s, want first", got)
		}
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		if err := s.Delete(ctx, "watch:never"); err != nil {
			t.Errorf("Delete(missing) error = %v", err)
		}
		s.Set(ctx, "watch:i-001", []byte("x"))
		if err := s.Delete(ctx, "watch:i-001"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := s.Get(ctx, "watch:i-001"); !errors.Is(err, domain.ErrKeyNotFound) {
			t.Errorf("Get after Delete error = %v", err)
		}
	})

	t.Run("ScanPrefix", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		for _, k := range []string{"watch:i-002", "watch:i-001", "other:i-003", "watchers"} {
			if err := s.Set(ctx, k, []byte(k)); err != nil {
				t.Fatal(err)
			}
		}

		items, err := s.Scan(ctx, "watch:")
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		keys := make([]string, 0, len(items))
		for _, it := range items {
			if string(it.Value) != it.Key {
				t.Errorf("value for %s = %s", it.Key, it.Value)
			}
			keys = append(keys, it.Key)
		}
		sort.Strings(keys)
		if len(keys) != 2 || keys[0] != "watch:i-001" || keys[1] != "watch:i-002" {
			t.Errorf("Scan() keys = %v", keys)
		}
	})

	t.Run("ScanEmpty", func(t *testing.T) {
		s := newStore(t)
		items, err := s.Scan(context.Background(), "watch:")
		if err != nil || len(items) != 0 {
			t.Errorf("Scan() = %v, %v", items, err)
		}
	})
}
