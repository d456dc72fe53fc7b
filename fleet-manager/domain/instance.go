package domain

import (
	"strings"
	"time"
)

type Instance struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	InstanceType string     `json:"instanceType"`
	PowerState   PowerState `json:"powerState"`
	Address      string     `json:"address"`
}

type PowerState string

const (
	PowerStatePending  PowerState = "pending"
	PowerStateRunning  PowerState = "running"
	PowerStateStopping PowerState = "stopping"
	PowerStateStopped  PowerState = "stopped"
	PowerStateUnknown  PowerState = "unknown"
)

// ParsePowerState maps a provider state name onto the known set. Anything
// else, including terminated and shutting-down, is reported as unknown.
func ParsePowerState(s string) PowerState {
	switch PowerState(strings.ToLower(strings.TrimSpace(s))) {
	case PowerStatePending:
		return PowerStatePending
	case PowerStateRunning:
		return PowerStateRunning
	case PowerStateStopping:
		return PowerStateStopping
	case PowerStateStopped:
		return PowerStateStopped
	default:
		return PowerStateUnknown
	}
}

// AcceptsCommands reports whether the remote command channel can reach the
// instance's operating system.
func (s PowerState) AcceptsCommands() bool {
	return s == PowerStateRunning
}

// InstanceRecord is a raw provider row. Nil fields were missing in the
// provider response.
type InstanceRecord struct {
	ID           *string
	Name         *string
	InstanceType *string
	State        *string
	Address      *string
}

type Action string

const (
	ActionStart Action = "start"
	ActionStop  Action = "stop"
)

func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionStart:
		return ActionStart, nil
	case ActionStop:
		return ActionStop, nil
	default:
		return "", ErrInvalidAction
	}
}

func (a Action) Valid() bool {
	return a == ActionStart || a == ActionStop
}

type ScriptState string

const (
	ScriptStateIdle     ScriptState = "idle"
	ScriptStateStarting ScriptState = "starting"
	ScriptStateRunning  ScriptState = "running"
	ScriptStateStopping ScriptState = "stopping"
	ScriptStateError    ScriptState = "error"
)

// Pending reports whether a submitted command has not been confirmed yet.
func (s ScriptState) Pending() bool {
	return s == ScriptStateStarting || s == ScriptStateStopping
}

type WatchEntry struct {
	InstanceID             string      `json:"instanceId"`
	ScriptWorkingDirectory string      `json:"scriptWorkingDirectory"`
	ScriptState            ScriptState `json:"scriptState"`
	LastCommandID          string      `json:"lastCommandId,omitempty"`
	// AwaitingCommand is set while LastCommandID has not reported a final
	// status, including when the state was already set optimistically.
	AwaitingCommand        bool        `json:"awaitingCommand,omitempty"`
	AddedAt                time.Time   `json:"addedAt"`
	UpdatedAt              time.Time   `json:"updatedAt"`
}

func NewWatchEntry(instanceID string) *WatchEntry {
	now := time.Now().UTC()
	return &WatchEntry{
		InstanceID:  instanceID,
		ScriptState: ScriptStateIdle,
		AddedAt:     now,
		UpdatedAt:   now,
	}
}

// UpdateScriptState records a new state. A non-empty commandID marks the
// entry as awaiting that command; an empty one settles it and keeps the
// previous handle.
func (w *WatchEntry) UpdateScriptState(state ScriptState, commandID string) {
	w.ScriptState = state
	if commandID != "" {
		w.LastCommandID = commandID
	}
	w.AwaitingCommand = commandID != ""
	w.UpdatedAt = time.Now().UTC()
}

// Awaiting reports whether the last command still needs a final status.
func (w *WatchEntry) Awaiting() bool {
	return w.LastCommandID != "" && (w.AwaitingCommand || w.ScriptState.Pending())
}
