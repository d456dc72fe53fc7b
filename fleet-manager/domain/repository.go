package domain

import (
	"context"
	"time"
)

// KeyValueStore is the durable backing store for operator intent. Every
// mutation must be committed before it returns.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// SetIfAbsent stores value only when key does not exist yet and reports
	// whether it did.
	SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error)
	// Delete is idempotent: a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Scan(ctx context.Context, prefix string) ([]Item, error)
	Close() error
}

type Item struct {
	Key   string
	Value []byte
}

type ViewPublisher interface {
	PublishView(ctx context.Context, view *FleetView) error
}

type CommandJournal interface {
	Record(ctx context.Context, entry *JournalEntry) error
}

type JournalKind string

const (
	JournalKindPower  JournalKind = "power"
	JournalKindScript JournalKind = "script"
)

type JournalEntry struct {
	InstanceID       string      `json:"instanceId"`
	Kind             JournalKind `json:"kind"`
	Action           Action      `json:"action"`
	WorkingDirectory string      `json:"workingDirectory,omitempty"`
	CommandID        string      `json:"commandId,omitempty"`
	ErrorCode        string      `json:"errorCode,omitempty"`
	ErrorMessage     string      `json:"errorMessage,omitempty"`
	At               time.Time   `json:"at"`
}
