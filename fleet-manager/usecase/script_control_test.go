package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

func TestScriptProfile_Commands(t *testing.T) {
	shell, _ := NewScriptProfile("", "", "")
	ps, _ := NewScriptProfile("PowerShell", "node.exe", "monitor.js")

	tests := []struct {
		name    string
		profile ScriptProfile
		action  domain.Action
		dir     string
		want    []string
		doc     string
	}{
		{
			name:    "shell start",
			profile: shell,
			action:  domain.ActionStart,
			dir:     "/opt/app",
			want:    []string{"cd '/opt/app'", "nohup 'node' 'monitor.js' > monitor.log 2>&1 &"},
			doc:     "AWS-RunShellScript",
		},
		{
			name:    "shell stop",
			profile: shell,
			action:  domain.ActionStop,
			dir:     "/opt/app",
			want:    []string{"cd '/opt/app'", "'node' 'monitor.js' stop"},
			doc:     "AWS-RunShellScript",
		},
		{
			name:    "shell quoting",
			profile: shell,
			action:  domain.ActionStop,
			dir:     "/opt/it's here",
			want:    []string{`cd '/opt/it'\''s here'`, "'node' 'monitor.js' stop"},
			doc:     "AWS-RunShellScript",
		},
		{
			name:    "powershell start",
			profile: ps,
			action:  domain.ActionStart,
			dir:     `C:\monitor`,
			want: []string{
				`Set-Location -LiteralPath 'C:\monitor'`,
				"Start-Process -FilePath 'node.exe' -ArgumentList 'monitor.js' -WindowStyle Hidden",
			},
			doc: "AWS-RunPowerShellScript",
		},
		{
			name:    "powershell stop",
			profile: ps,
			action:  domain.ActionStop,
			dir:     `C:\it's`,
			want:    []string{`Set-Location -LiteralPath 'C:\it''s'`, "& 'node.exe' 'monitor.js' stop"},
			doc:     "AWS-RunPowerShellScript",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.profile.Commands(tt.action, tt.dir)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Commands() = %q, want %q", got, tt.want)
			}
			if doc := tt.profile.Document(); doc != tt.doc {
				t.Errorf("Document() = %s, want %s", doc, tt.doc)
			}
		})
	}
}

func TestNewScriptProfile_Unknown(t *testing.T) {
	if _, err := NewScriptProfile("fish", "", ""); err == nil {
		t.Error("NewScriptProfile(fish) succeeded")
	}
}

func newScriptController(describer *MockDescriber, channel *MockCommandChannel) *RemoteScriptController {
	profile, _ := NewScriptProfile("shell", "", "")
	directory := NewInstanceDirectory(describer, discardLogger())
	return NewRemoteScriptController(directory, channel, profile, discardLogger())
}

func TestRemoteScriptController_NotRunning(t *testing.T) {
	states := []string{"stopped", "pending", "stopping", "terminated"}

	for _, state := range states {
		for _, action := range []domain.Action{domain.ActionStart, domain.ActionStop} {
			t.Run(state+"/"+string(action), func(t *testing.T) {
				channel := NewMockCommandChannel()
				c := newScriptController(NewMockDescriber(record("i-001", state)), channel)

				_, err := c.SetScript(context.Background(), "i-001", action, "/opt/app")

				var notRunning *domain.InstanceNotRunningError
				if !errors.As(err, &notRunning) {
					t.Fatalf("error = %v, want InstanceNotRunningError", err)
				}
				if notRunning.State != domain.ParsePowerState(state) {
					t.Errorf("State = %s, want %s", notRunning.State, state)
				}
				if n := len(channel.Sent()); n != 0 {
					t.Errorf("remote commands sent = %d, want 0", n)
				}
			})
		}
	}
}

func TestRemoteScriptController_NotFound(t *testing.T) {
	channel := NewMockCommandChannel()
	c := newScriptController(NewMockDescriber(record("i-001", "running")), channel)

	_, err := c.SetScript(context.Background(), "i-404", domain.ActionStart, "/opt/app")
	if !errors.Is(err, domain.ErrInstanceNotFound) {
		t.Errorf("error = %v, want ErrInstanceNotFound", err)
	}
	if len(channel.Sent()) != 0 {
		t.Error("command sent for unknown instance")
	}
}

func TestRemoteScriptController_Submit(t *testing.T) {
	channel := NewMockCommandChannel()
	c := newScriptController(NewMockDescriber(record("i-002", "running")), channel)

	handle, err := c.SetScript(context.Background(), "i-002", domain.ActionStart, "/opt/app")
	if err != nil {
		t.Fatalf("SetScript() error = %v", err)
	}
	if handle.CommandID == "" || handle.InstanceID != "i-002" {
		t.Errorf("handle = %+v", handle)
	}

	sent := channel.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sent))
	}
	if sent[0].document != "AWS-RunShellScript" {
		t.Errorf("document = %s", sent[0].document)
	}
	if sent[0].commands[0] != "cd '/opt/app'" {
		t.Errorf("first command = %q", sent[0].commands[0])
	}
}

func TestRemoteScriptController_Rejected(t *testing.T) {
	channel := NewMockCommandChannel()
	channel.err = errors.New("InvalidInstanceId: instance not managed")
	c := newScriptController(NewMockDescriber(record("i-002", "running")), channel)

	_, err := c.SetScript(context.Background(), "i-002", domain.ActionStop, "/opt/app")

	var rejected *domain.CommandRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("error = %v, want CommandRejectedError", err)
	}
	if rejected.Reason != "InvalidInstanceId: instance not managed" {
		t.Errorf("Reason = %q", rejected.Reason)
	}
}

func TestRemoteScriptController_ProviderUnavailable(t *testing.T) {
	describer := NewMockDescriber()
	describer.Fail(errors.New("connection reset"))
	channel := NewMockCommandChannel()
	c := newScriptController(describer, channel)

	_, err := c.SetScript(context.Background(), "i-002", domain.ActionStart, "/opt/app")
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("error = %v, want ErrProviderUnavailable", err)
	}
	if len(channel.Sent()) != 0 {
		t.Error("command sent without a directory read")
	}
}
