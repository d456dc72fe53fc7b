package kvstore

import (
	"context"
	"testing"

	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/kvstore/boltstore"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/kvstore/memstore"
)

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("STORAGE_PATH", "")
	t.Setenv("DYNAMODB_TABLE", "")

	c := NewConfigFromEnv()
	if c.Backend != BackendRedis {
		t.Errorf("Backend = %s, want redis", c.Backend)
	}
	if c.StoragePath != "./data" || c.DynamoTable != "quickfleet_kv" {
		t.Errorf("defaults = %+v", c)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, &Config{Backend: BackendMemory}, nil)
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := s.(*memstore.Storage); !ok {
		t.Errorf("Open(memory) = %T", s)
	}

	s, err = Open(ctx, &Config{Backend: BackendBolt, StoragePath: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("Open(bolt) error = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*boltstore.Storage); !ok {
		t.Errorf("Open(bolt) = %T", s)
	}

	if _, err := Open(ctx, &Config{Backend: "etcd"}, nil); err == nil {
		t.Error("Open(etcd) succeeded")
	}
}
