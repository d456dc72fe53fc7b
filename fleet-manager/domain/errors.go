package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderRejected    = errors.New("provider rejected request")
	ErrInstanceNotFound    = errors.New("instance not found")
	ErrInstanceNotRunning  = errors.New("instance not running")
	ErrCommandRejected     = errors.New("command rejected")
	ErrNotWatched          = errors.New("instance not watched")
	ErrActionInProgress    = errors.New("action already in progress")
	ErrInvalidAction       = errors.New("invalid action")
	ErrScriptPathRequired  = errors.New("script working directory required")

	ErrKeyNotFound = errors.New("key not found")
	ErrStorageFail = errors.New("storage has problem")
)

type ProviderRejectedError struct {
	Reason string
}

func (e *ProviderRejectedError) Error() string {
	return fmt.Sprintf("provider rejected request: %s", e.Reason)
}

func (e *ProviderRejectedError) Unwrap() error {
	return ErrProviderRejected
}

type InstanceNotRunningError struct {
	State PowerState
}

func (e *InstanceNotRunningError) Error() string {
	return fmt.Sprintf("instance not running: %s", e.State)
}

func (e *InstanceNotRunningError) Unwrap() error {
	return ErrInstanceNotRunning
}

type CommandRejectedError struct {
	Reason string
}

func (e *CommandRejectedError) Error() string {
	return fmt.Sprintf("command rejected: %s", e.Reason)
}

func (e *CommandRejectedError) Unwrap() error {
	return ErrCommandRejected
}

const (
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeProviderRejected    = "PROVIDER_REJECTED"
	CodeInstanceNotFound    = "INSTANCE_NOT_FOUND"
	CodeInstanceNotRunning  = "INSTANCE_NOT_RUNNING"
	CodeCommandRejected     = "COMMAND_REJECTED"
	CodeNotWatched          = "NOT_WATCHED"
	CodeActionInProgress    = "ACTION_IN_PROGRESS"
	CodeInvalidAction       = "INVALID_ACTION"
	CodeScriptPathRequired  = "SCRIPT_PATH_REQUIRED"
	CodeInternal            = "INTERNAL"
)

// ErrorCode classifies err into a stable code for callers outside the process.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotWatched):
		return CodeNotWatched
	case errors.Is(err, ErrInstanceNotFound):
		return CodeInstanceNotFound
	case errors.Is(err, ErrInstanceNotRunning):
		return CodeInstanceNotRunning
	case errors.Is(err, ErrCommandRejected):
		return CodeCommandRejected
	case errors.Is(err, ErrProviderRejected):
		return CodeProviderRejected
	case errors.Is(err, ErrProviderUnavailable):
		return CodeProviderUnavailable
	case errors.Is(err, ErrActionInProgress):
		return CodeActionInProgress
	case errors.Is(err, ErrInvalidAction):
		return CodeInvalidAction
	case errors.Is(err, ErrScriptPathRequired):
		return CodeScriptPathRequired
	default:
		return CodeInternal
	}
}
