package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

type ec2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
}

// EC2Provider implements domain.InstanceDescriber and domain.PowerSwitch.
type EC2Provider struct {
	client ec2API
}

func NewEC2Client(cfg aws.Config, endpoint *string) *ec2.Client {
	return ec2.NewFromConfig(cfg, func(o *ec2.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
}

func NewEC2Provider(client ec2API) *EC2Provider {
	return &EC2Provider{client: client}
}

func (p *EC2Provider) DescribeInstances(ctx context.Context) ([]domain.InstanceRecord, error) {
	records := make([]domain.InstanceRecord, 0)

	paginator := ec2.NewDescribeInstancesPaginator(p.client, &ec2.DescribeInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w: %v", domain.ErrProviderUnavailable, err)
		}
		for _, reservation := range page.Reservations {
			for _, inst := range reservation.Instances {
				records = append(records, toRecord(inst))
			}
		}
	}
	return records, nil
}

func toRecord(inst types.Instance) domain.InstanceRecord {
	r := domain.InstanceRecord{
		ID:      inst.InstanceId,
		Address: inst.PublicDnsName,
	}
	if inst.InstanceType != "" {
		r.InstanceType = aws.String(string(inst.InstanceType))
	}
	if inst.State != nil && inst.State.Name != "" {
		r.State = aws.String(string(inst.State.Name))
	}
	for _, tag := range inst.Tags {
		if aws.ToString(tag.Key) == "Name" {
			r.Name = tag.Value
			break
		}
	}
	return r
}

func (p *EC2Provider) ChangePowerState(ctx context.Context, instanceID string, action domain.Action) error {
	ids := []string{instanceID}

	var err error
	switch action {
	case domain.ActionStart:
		_, err = p.client.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: ids})
	case domain.ActionStop:
		_, err = p.client.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: ids})
	default:
		return fmt.Errorf("%w: %q", domain.ErrInvalidAction, action)
	}
	if err != nil {
		return classify(string(action)+" instance", err)
	}
	return nil
}
