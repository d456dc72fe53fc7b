package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

func TestInstanceDirectory_ListInstances(t *testing.T) {
	ctx := context.Background()
	describer := NewMockDescriber(
		record("i-003", "stopped"),
		domain.InstanceRecord{ID: ptr("i-001")},
		domain.InstanceRecord{Name: ptr("no id")},
		record("i-002", "terminated"),
	)
	d := NewInstanceDirectory(describer, discardLogger())

	instances, err := d.ListInstances(ctx)
	if err != nil {
		t.Fatalf("ListInstances() error = %v", err)
	}
	if len(instances) != 3 {
		t.Fatalf("got %d instances, want 3", len(instances))
	}

	wantIDs := []string{"i-001", "i-002", "i-003"}
	for i, id := range wantIDs {
		if instances[i].ID != id {
			t.Errorf("instances[%d].ID = %s, want %s", i, instances[i].ID, id)
		}
	}

	bare := instances[0]
	if bare.PowerState != domain.PowerStateUnknown || bare.InstanceType != "" || bare.Address != "" {
		t.Errorf("missing fields not defaulted: %+v", bare)
	}
	if instances[1].PowerState != domain.PowerStateUnknown {
		t.Errorf("terminated mapped to %s, want unknown", instances[1].PowerState)
	}
	if instances[2].PowerState != domain.PowerStateStopped {
		t.Errorf("i-003 state = %s, want stopped", instances[2].PowerState)
	}

	cached, fetchedAt := d.Cached()
	if len(cached) != 3 || fetchedAt.IsZero() {
		t.Errorf("Cached() = %d instances at %v", len(cached), fetchedAt)
	}
}

func TestInstanceDirectory_ListInstancesError(t *testing.T) {
	describer := NewMockDescriber()
	describer.Fail(errors.New("dial tcp: timeout"))
	d := NewInstanceDirectory(describer, discardLogger())

	_, err := d.ListInstances(context.Background())
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("error = %v, want ErrProviderUnavailable", err)
	}
}

func TestInstanceDirectory_Lookup(t *testing.T) {
	ctx := context.Background()
	describer := NewMockDescriber(record("i-001", "running"))
	d := NewInstanceDirectory(describer, discardLogger())

	inst, err := d.Lookup(ctx, "i-001")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if inst.PowerState != domain.PowerStateRunning {
		t.Errorf("PowerState = %s, want running", inst.PowerState)
	}

	describer.Set(record("i-001", "stopped"))
	inst, err = d.Lookup(ctx, "i-001")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if inst.PowerState != domain.PowerStateStopped {
		t.Errorf("Lookup served a cached state %s", inst.PowerState)
	}
	if describer.Calls() != 2 {
		t.Errorf("describer calls = %d, want 2", describer.Calls())
	}

	if _, err := d.Lookup(ctx, "i-404"); !errors.Is(err, domain.ErrInstanceNotFound) {
		t.Errorf("Lookup(i-404) error = %v, want ErrInstanceNotFound", err)
	}
}
