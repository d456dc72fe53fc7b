package domain

import (
	"context"
	"time"
)

type InstanceDescriber interface {
	DescribeInstances(ctx context.Context) ([]InstanceRecord, error)
}

type PowerSwitch interface {
	ChangePowerState(ctx context.Context, instanceID string, action Action) error
}

type CommandChannel interface {
	SendCommand(ctx context.Context, instanceID, document string, commands []string) (CommandHandle, error)
	CommandStatus(ctx context.Context, handle CommandHandle) (CommandStatus, error)
}

type CommandHandle struct {
	CommandID   string    `json:"commandId"`
	InstanceID  string    `json:"instanceId"`
	// SubmittedAt is zero when unknown.
	SubmittedAt time.Time `json:"submittedAt,omitzero"`
}

type CommandStatus string

const (
	CommandStatusPending    CommandStatus = "pending"
	CommandStatusInProgress CommandStatus = "in_progress"
	CommandStatusSuccess    CommandStatus = "success"
	CommandStatusFailed     CommandStatus = "failed"
	CommandStatusCancelled  CommandStatus = "cancelled"
	CommandStatusTimedOut   CommandStatus = "timed_out"
	// CommandStatusExpired means the provider no longer knows the command,
	// or never delivered it.
	CommandStatusExpired    CommandStatus = "expired"
)

func (s CommandStatus) Done() bool {
	switch s {
	case CommandStatusSuccess, CommandStatusFailed, CommandStatusCancelled, CommandStatusTimedOut, CommandStatusExpired:
		return true
	default:
		return false
	}
}
