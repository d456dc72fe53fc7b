package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/kvstore/kvstoretest"
)

func newTestStore(t *testing.T) (*Storage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewStore(client, "")
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestStorage(t *testing.T) {
	kvstoretest.Run(t, func(t *testing.T) domain.KeyValueStore {
		s, _ := newTestStore(t)
		return s
	})
}

func TestStorage_Namespace(t *testing.T) {
	s, mr := newTestStore(t)
	if err := s.Set(context.Background(), "watch:i-001", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("quickfleet:watch:i-001") {
		t.Errorf("keys = %v", mr.Keys())
	}
	if ttl := mr.TTL("quickfleet:watch:i-001"); ttl != 0 {
		t.Errorf("TTL = %v, want none", ttl)
	}
}

func TestEscapeGlob(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "watch:", want: "watch:"},
		{in: "a*b?", want: `a\*b\?`},
		{in: "[x]", want: `\[x\]`},
	}
	for _, tt := range tests {
		if got := escapeGlob(tt.in); got != tt.want {
			t.Errorf("escapeGlob(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
