package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

const (
	DefaultScriptLauncher = "node"
	DefaultScriptEntry    = "monitor.js"

	shellDocument      = "AWS-RunShellScript"
	powershellDocument = "AWS-RunPowerShellScript"
)

type ScriptShell string

const (
	ScriptShellPOSIX      ScriptShell = "shell"
	ScriptShellPowerShell ScriptShell = "powershell"
)

// ScriptProfile describes how the monitoring script is launched inside an
// instance. The script is expected to stop itself when run with "stop".
type ScriptProfile struct {
	Shell    ScriptShell
	Launcher string
	Entry    string
}

func NewScriptProfile(shell, launcher, entry string) (ScriptProfile, error) {
	p := ScriptProfile{
		Shell:    ScriptShell(strings.ToLower(strings.TrimSpace(shell))),
		Launcher: launcher,
		Entry:    entry,
	}
	if p.Shell == "" {
		p.Shell = ScriptShellPOSIX
	}
	if p.Shell != ScriptShellPOSIX && p.Shell != ScriptShellPowerShell {
		return ScriptProfile{}, fmt.Errorf("unknown script shell: %s", shell)
	}
	if p.Launcher == "" {
		p.Launcher = DefaultScriptLauncher
	}
	if p.Entry == "" {
		p.Entry = DefaultScriptEntry
	}
	return p, nil
}

func (p ScriptProfile) Document() string {
	if p.Shell == ScriptShellPowerShell {
		return powershellDocument
	}
	return shellDocument
}

// Commands builds the command lines for action. Both sequences change into
// dir first.
func (p ScriptProfile) Commands(action domain.Action, dir string) []string {
	if p.Shell == ScriptShellPowerShell {
		cd := fmt.Sprintf("Set-Location -LiteralPath %s", psQuote(dir))
		if action == domain.ActionStart {
			return []string{
				cd,
				fmt.Sprintf("Start-Process -FilePath %s -ArgumentList %s -WindowStyle Hidden", psQuote(p.Launcher), psQuote(p.Entry)),
			}
		}
		return []string{
			cd,
			fmt.Sprintf("& %s %s stop", psQuote(p.Launcher), psQuote(p.Entry)),
		}
	}

	cd := fmt.Sprintf("cd %s", shQuote(dir))
	if action == domain.ActionStart {
		return []string{
			cd,
			fmt.Sprintf("nohup %s %s > monitor.log 2>&1 &", shQuote(p.Launcher), shQuote(p.Entry)),
		}
	}
	return []string{
		cd,
		fmt.Sprintf("%s %s stop", shQuote(p.Launcher), shQuote(p.Entry)),
	}
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

type RemoteScriptController struct {
	directory *InstanceDirectory
	channel   domain.CommandChannel
	profile   ScriptProfile
	logger    *slog.Logger
}

func NewRemoteScriptController(directory *InstanceDirectory, channel domain.CommandChannel, profile ScriptProfile, logger *slog.Logger) *RemoteScriptController {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteScriptController{
		directory: directory,
		channel:   channel,
		profile:   profile,
		logger:    logger,
	}
}

// SetScript submits a start or stop sequence for the monitoring script and
// returns as soon as the command channel accepts it. Instances that are not
// running are refused without contacting the command channel.
func (c *RemoteScriptController) SetScript(ctx context.Context, instanceID string, action domain.Action, workingDirectory string) (domain.CommandHandle, error) {
	if !action.Valid() {
		return domain.CommandHandle{}, fmt.Errorf("%w: %q", domain.ErrInvalidAction, action)
	}
	if strings.TrimSpace(workingDirectory) == "" {
		return domain.CommandHandle{}, domain.ErrScriptPathRequired
	}

	instance, err := c.directory.Lookup(ctx, instanceID)
	if err != nil {
		return domain.CommandHandle{}, err
	}
	if !instance.PowerState.AcceptsCommands() {
		return domain.CommandHandle{}, &domain.InstanceNotRunningError{State: instance.PowerState}
	}

	commands := c.profile.Commands(action, workingDirectory)
	handle, err := c.channel.SendCommand(ctx, instanceID, c.profile.Document(), commands)
	if err != nil {
		c.logger.Warn("script command rejected",
			slog.String("instance_id", instanceID),
			slog.String("action", string(action)),
			slog.Any("error", err),
		)
		var rejected *domain.CommandRejectedError
		if errors.As(err, &rejected) {
			return domain.CommandHandle{}, err
		}
		return domain.CommandHandle{}, &domain.CommandRejectedError{Reason: err.Error()}
	}
	if handle.InstanceID == "" {
		handle.InstanceID = instanceID
	}

	c.logger.Info("script command submitted",
		slog.String("instance_id", instanceID),
		slog.String("action", string(action)),
		slog.String("command_id", handle.CommandID),
	)
	return handle, nil
}

func (c *RemoteScriptController) CommandStatus(ctx context.Context, handle domain.CommandHandle) (domain.CommandStatus, error) {
	return c.channel.CommandStatus(ctx, handle)
}
