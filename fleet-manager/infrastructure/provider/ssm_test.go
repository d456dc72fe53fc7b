package provider

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

type fakeSSM struct {
	sent      *ssm.SendCommandInput
	sendErr   error
	status    types.CommandInvocationStatus
	statusErr error
}

func (f *fakeSSM) SendCommand(ctx context.Context, params *ssm.SendCommandInput, optFns ...func(*ssm.Options)) (*ssm.SendCommandOutput, error) {
	f.sent = params
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &ssm.SendCommandOutput{
		Command: &types.Command{CommandId: aws.String("cmd-123")},
	}, nil
}

func (f *fakeSSM) GetCommandInvocation(ctx context.Context, params *ssm.GetCommandInvocationInput, optFns ...func(*ssm.Options)) (*ssm.GetCommandInvocationOutput, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &ssm.GetCommandInvocationOutput{Status: f.status}, nil
}

func TestSSMChannel_SendCommand(t *testing.T) {
	fake := &fakeSSM{}
	c := NewSSMChannel(fake)
	commands := []string{"cd '/opt/app'", "nohup 'node' 'monitor.js' > monitor.log 2>&1 &"}

	handle, err := c.SendCommand(context.Background(), "i-002", "AWS-RunShellScript", commands)
	if err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if handle.CommandID != "cmd-123" || handle.InstanceID != "i-002" {
		t.Errorf("handle = %+v", handle)
	}
	if aws.ToString(fake.sent.DocumentName) != "AWS-RunShellScript" {
		t.Errorf("document = %s", aws.ToString(fake.sent.DocumentName))
	}
	if !reflect.DeepEqual(fake.sent.Parameters["commands"], commands) {
		t.Errorf("commands = %q", fake.sent.Parameters["commands"])
	}
	if !reflect.DeepEqual(fake.sent.InstanceIds, []string{"i-002"}) {
		t.Errorf("instance ids = %v", fake.sent.InstanceIds)
	}
}

func TestSSMChannel_SendCommandRejected(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantReason string
	}{
		{
			name:       "api error",
			err:        &smithy.GenericAPIError{Code: "InvalidInstanceId", Message: "Instances not in a valid state"},
			wantReason: "InvalidInstanceId: Instances not in a valid state",
		},
		{
			name:       "transport error",
			err:        errors.New("connection refused"),
			wantReason: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewSSMChannel(&fakeSSM{sendErr: tt.err})
			_, err := c.SendCommand(context.Background(), "i-002", "AWS-RunShellScript", []string{"true"})

			var rejected *domain.CommandRejectedError
			if !errors.As(err, &rejected) {
				t.Fatalf("error = %v, want CommandRejectedError", err)
			}
			if rejected.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", rejected.Reason, tt.wantReason)
			}
		})
	}
}

func TestSSMChannel_CommandStatus(t *testing.T) {
	tests := []struct {
		status types.CommandInvocationStatus
		want   domain.CommandStatus
	}{
		{status: types.CommandInvocationStatusPending, want: domain.CommandStatusPending},
		{status: types.CommandInvocationStatusDelayed, want: domain.CommandStatusPending},
		{status: types.CommandInvocationStatusInProgress, want: domain.CommandStatusInProgress},
		{status: types.CommandInvocationStatusSuccess, want: domain.CommandStatusSuccess},
		{status: types.CommandInvocationStatusFailed, want: domain.CommandStatusFailed},
		{status: types.CommandInvocationStatusCancelled, want: domain.CommandStatusCancelled},
		{status: types.CommandInvocationStatusTimedOut, want: domain.CommandStatusTimedOut},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			c := NewSSMChannel(&fakeSSM{status: tt.status})
			got, err := c.CommandStatus(context.Background(), domain.CommandHandle{CommandID: "cmd-1", InstanceID: "i-002"})
			if err != nil || got != tt.want {
				t.Errorf("CommandStatus() = %v, %v; want %v", got, err, tt.want)
			}
		})
	}
}

func TestSSMChannel_CommandStatusNotYetVisible(t *testing.T) {
	tests := []struct {
		name        string
		submittedAt time.Time
		want        domain.CommandStatus
	}{
		{name: "unknown age", want: domain.CommandStatusPending},
		{name: "just submitted", submittedAt: time.Now().Add(-10 * time.Second), want: domain.CommandStatusPending},
		{name: "past window", submittedAt: time.Now().Add(-InvocationVisibilityWindow - time.Minute), want: domain.CommandStatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewSSMChannel(&fakeSSM{statusErr: &types.InvocationDoesNotExist{}})

			got, err := c.CommandStatus(context.Background(), domain.CommandHandle{
				CommandID:   "cmd-1",
				InstanceID:  "i-002",
				SubmittedAt: tt.submittedAt,
			})
			if err != nil || got != tt.want {
				t.Errorf("CommandStatus() = %v, %v; want %v", got, err, tt.want)
			}
		})
	}
}
