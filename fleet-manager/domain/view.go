package domain

import "time"

// FleetRow joins one watch entry with the instance facts last observed for
// it. PowerState and ScriptState are last-known labels.
type FleetRow struct {
	Instance
	ScriptWorkingDirectory string      `json:"scriptWorkingDirectory"`
	ScriptState            ScriptState `json:"scriptState"`
	LastCommandID          string      `json:"lastCommandId,omitempty"`
	// Known is false when the instance was missing from the last directory fetch.
	Known            bool `json:"known"`
	ActionInProgress bool `json:"actionInProgress"`
}

type FleetView struct {
	Rows      []FleetRow `json:"rows"`
	Available []Instance `json:"available"`
	FetchedAt time.Time  `json:"fetchedAt"`
	Stale     bool       `json:"stale"`
	Error     string     `json:"error,omitempty"`
}

func (v *FleetView) Clone() *FleetView {
	if v == nil {
		return nil
	}
	out := *v
	out.Rows = make([]FleetRow, len(v.Rows))
	copy(out.Rows, v.Rows)
	out.Available = make([]Instance, len(v.Available))
	copy(out.Available, v.Available)
	return &out
}

func (v *FleetView) Row(instanceID string) (FleetRow, bool) {
	for _, r := range v.Rows {
		if r.ID == instanceID {
			return r, true
		}
	}
	return FleetRow{}, false
}
