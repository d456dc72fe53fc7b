package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

const watchKeyPrefix = "watch:"

// WatchListStore keeps operator intent in a KeyValueStore. Mutations on one
// instance are serialized; each one is committed before it returns.
type WatchListStore struct {
	kv     domain.KeyValueStore
	locks  *keyLock
	logger *slog.Logger
}

func NewWatchListStore(kv domain.KeyValueStore, logger *slog.Logger) *WatchListStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatchListStore{
		kv:     kv,
		locks:  newKeyLock(),
		logger: logger,
	}
}

func watchKey(instanceID string) string {
	return watchKeyPrefix + instanceID
}

// Add creates an idle entry for instanceID unless one exists. It reports
// whether an entry was created.
func (s *WatchListStore) Add(ctx context.Context, instanceID string) (bool, error) {
	unlock := s.locks.Lock(instanceID)
	defer unlock()

	data, err := json.Marshal(domain.NewWatchEntry(instanceID))
	if err != nil {
		return false, fmt.Errorf("failed to marshal watch entry: %w", err)
	}

	created, err := s.kv.SetIfAbsent(ctx, watchKey(instanceID), data)
	if err != nil {
		return false, fmt.Errorf("failed to add watch entry: %w", err)
	}
	if created {
		s.logger.Info("watch entry added", slog.String("instance_id", instanceID))
	}
	return created, nil
}

// Remove deletes the entry and its script configuration. Removing an unknown
// instance is not an error.
func (s *WatchListStore) Remove(ctx context.Context, instanceID string) error {
	unlock := s.locks.Lock(instanceID)
	defer unlock()

	if err := s.kv.Delete(ctx, watchKey(instanceID)); err != nil {
		return fmt.Errorf("failed to remove watch entry: %w", err)
	}
	return nil
}

func (s *WatchListStore) SetScriptPath(ctx context.Context, instanceID, path string) (*domain.WatchEntry, error) {
	return s.update(ctx, instanceID, func(e *domain.WatchEntry) bool {
		e.ScriptWorkingDirectory = path
		return true
	})
}

func (s *WatchListStore) SetScriptState(ctx context.Context, instanceID string, state domain.ScriptState, commandID string) (*domain.WatchEntry, error) {
	return s.update(ctx, instanceID, func(e *domain.WatchEntry) bool {
		e.UpdateScriptState(state, commandID)
		return true
	})
}

// CompleteCommand applies state only if commandID is still the command the
// entry is awaiting. It reports whether the entry changed.
func (s *WatchListStore) CompleteCommand(ctx context.Context, instanceID, commandID string, state domain.ScriptState) (bool, error) {
	changed := false
	_, err := s.update(ctx, instanceID, func(e *domain.WatchEntry) bool {
		if e.LastCommandID != commandID || !e.Awaiting() {
			return false
		}
		e.UpdateScriptState(state, "")
		changed = true
		return true
	})
	return changed, err
}

func (s *WatchListStore) Get(ctx context.Context, instanceID string) (*domain.WatchEntry, error) {
	return s.read(ctx, instanceID)
}

// List returns every entry in no particular order.
func (s *WatchListStore) List(ctx context.Context) ([]*domain.WatchEntry, error) {
	items, err := s.kv.Scan(ctx, watchKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list watch entries: %w", err)
	}

	entries := make([]*domain.WatchEntry, 0, len(items))
	for _, item := range items {
		var e domain.WatchEntry
		if err := json.Unmarshal(item.Value, &e); err != nil {
			s.logger.Error("skipping broken watch entry", slog.String("key", item.Key), slog.Any("error", err))
			continue
		}
		if e.InstanceID == "" {
			e.InstanceID = strings.TrimPrefix(item.Key, watchKeyPrefix)
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

func (s *WatchListStore) update(ctx context.Context, instanceID string, mutate func(*domain.WatchEntry) bool) (*domain.WatchEntry, error) {
	unlock := s.locks.Lock(instanceID)
	defer unlock()

	entry, err := s.read(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if !mutate(entry) {
		return entry, nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal watch entry: %w", err)
	}
	if err := s.kv.Set(ctx, watchKey(instanceID), data); err != nil {
		return nil, fmt.Errorf("failed to save watch entry: %w", err)
	}
	return entry, nil
}

func (s *WatchListStore) read(ctx context.Context, instanceID string) (*domain.WatchEntry, error) {
	data, err := s.kv.Get(ctx, watchKey(instanceID))
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotWatched, instanceID)
		}
		return nil, fmt.Errorf("failed to read watch entry: %w", err)
	}

	var entry domain.WatchEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("broken watch entry %s: %w", instanceID, domain.ErrStorageFail)
	}
	if entry.InstanceID == "" {
		entry.InstanceID = instanceID
	}
	return &entry, nil
}
