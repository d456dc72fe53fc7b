package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

type InstanceDirectory struct {
	describer domain.InstanceDescriber
	logger    *slog.Logger

	mu        sync.RWMutex
	cached    []domain.Instance
	fetchedAt time.Time
}

func NewInstanceDirectory(describer domain.InstanceDescriber, logger *slog.Logger) *InstanceDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &InstanceDirectory{
		describer: describer,
		logger:    logger,
	}
}

// ListInstances fetches every instance the provider reports, sorted by ID.
// It does not retry.
func (d *InstanceDirectory) ListInstances(ctx context.Context) ([]domain.Instance, error) {
	records, err := d.describer.DescribeInstances(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrProviderUnavailable) {
			return nil, fmt.Errorf("failed to list instances: %w", err)
		}
		return nil, fmt.Errorf("failed to list instances: %w: %v", domain.ErrProviderUnavailable, err)
	}

	instances := make([]domain.Instance, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		inst, ok := normalize(r)
		if !ok {
			d.logger.Warn("dropping instance record without id")
			continue
		}
		if _, dup := seen[inst.ID]; dup {
			continue
		}
		seen[inst.ID] = struct{}{}
		instances = append(instances, inst)
	}

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].ID < instances[j].ID
	})

	d.mu.Lock()
	d.cached = instances
	d.fetchedAt = time.Now().UTC()
	d.mu.Unlock()

	return append([]domain.Instance(nil), instances...), nil
}

// Lookup resolves one instance with a fresh read, never from the cache.
func (d *InstanceDirectory) Lookup(ctx context.Context, instanceID string) (*domain.Instance, error) {
	instances, err := d.ListInstances(ctx)
	if err != nil {
		return nil, err
	}
	for i := range instances {
		if instances[i].ID == instanceID {
			return &instances[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, instanceID)
}

// Cached returns the result of the last successful fetch.
func (d *InstanceDirectory) Cached() ([]domain.Instance, time.Time) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.Instance(nil), d.cached...), d.fetchedAt
}

func normalize(r domain.InstanceRecord) (domain.Instance, bool) {
	id := strings.TrimSpace(deref(r.ID))
	if id == "" {
		return domain.Instance{}, false
	}
	return domain.Instance{
		ID:           id,
		Name:         deref(r.Name),
		InstanceType: deref(r.InstanceType),
		PowerState:   domain.ParsePowerState(deref(r.State)),
		Address:      deref(r.Address),
	}, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
