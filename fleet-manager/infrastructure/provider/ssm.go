package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

const (
	commandComment = "quickfleet monitoring script"

	// InvocationVisibilityWindow bounds how long a command may stay unknown
	// to GetCommandInvocation before it counts as expired.
	InvocationVisibilityWindow = 5 * time.Minute
)

type ssmAPI interface {
	SendCommand(ctx context.Context, params *ssm.SendCommandInput, optFns ...func(*ssm.Options)) (*ssm.SendCommandOutput, error)
	GetCommandInvocation(ctx context.Context, params *ssm.GetCommandInvocationInput, optFns ...func(*ssm.Options)) (*ssm.GetCommandInvocationOutput, error)
}

// SSMChannel implements domain.CommandChannel with Systems Manager Run
// Command.
type SSMChannel struct {
	client ssmAPI
}

func NewSSMClient(cfg aws.Config, endpoint *string) *ssm.Client {
	return ssm.NewFromConfig(cfg, func(o *ssm.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
}

func NewSSMChannel(client ssmAPI) *SSMChannel {
	return &SSMChannel{client: client}
}

func (c *SSMChannel) SendCommand(ctx context.Context, instanceID, document string, commands []string) (domain.CommandHandle, error) {
	out, err := c.client.SendCommand(ctx, &ssm.SendCommandInput{
		InstanceIds:  []string{instanceID},
		DocumentName: aws.String(document),
		Parameters: map[string][]string{
			"commands": commands,
		},
		Comment: aws.String(commandComment),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return domain.CommandHandle{}, &domain.CommandRejectedError{Reason: reason(apiErr)}
		}
		return domain.CommandHandle{}, &domain.CommandRejectedError{Reason: err.Error()}
	}
	if out.Command == nil || aws.ToString(out.Command.CommandId) == "" {
		return domain.CommandHandle{}, &domain.CommandRejectedError{Reason: "no command id returned"}
	}

	return domain.CommandHandle{
		CommandID:  aws.ToString(out.Command.CommandId),
		InstanceID: instanceID,
	}, nil
}

func (c *SSMChannel) CommandStatus(ctx context.Context, handle domain.CommandHandle) (domain.CommandStatus, error) {
	out, err := c.client.GetCommandInvocation(ctx, &ssm.GetCommandInvocationInput{
		CommandId:  aws.String(handle.CommandID),
		InstanceId: aws.String(handle.InstanceID),
	})
	if err != nil {
		// the invocation is not visible for a short while after submission
		var notYet *types.InvocationDoesNotExist
		if errors.As(err, &notYet) {
			return invocationMissing(handle, time.Now()), nil
		}
		return "", classify("get command invocation", err)
	}
	return toCommandStatus(out.Status)
}

func invocationMissing(handle domain.CommandHandle, now time.Time) domain.CommandStatus {
	if handle.SubmittedAt.IsZero() || now.Sub(handle.SubmittedAt) < InvocationVisibilityWindow {
		return domain.CommandStatusPending
	}
	return domain.CommandStatusExpired
}

func toCommandStatus(s types.CommandInvocationStatus) (domain.CommandStatus, error) {
	switch s {
	case types.CommandInvocationStatusPending, types.CommandInvocationStatusDelayed:
		return domain.CommandStatusPending, nil
	case types.CommandInvocationStatusInProgress, types.CommandInvocationStatusCancelling:
		return domain.CommandStatusInProgress, nil
	case types.CommandInvocationStatusSuccess:
		return domain.CommandStatusSuccess, nil
	case types.CommandInvocationStatusFailed:
		return domain.CommandStatusFailed, nil
	case types.CommandInvocationStatusCancelled:
		return domain.CommandStatusCancelled, nil
	case types.CommandInvocationStatusTimedOut:
		return domain.CommandStatusTimedOut, nil
	default:
		return "", fmt.Errorf("unknown command status %q", s)
	}
}
