package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

const (
	DefaultTableName = "quickfleet_kv"
	partitionKey     = "KV"
	tableWaitTimeout = 30 * time.Second
)

type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Storage keeps all keys under one partition so that Scan is a single
// Query. Writes are acknowledged by DynamoDB only once durable.
type Storage struct {
	client    dynamoAPI
	tableName string
}

type kvItem struct {
	PK    string `dynamodbav:"pk"`
	SK    string `dynamodbav:"sk"`
	Value []byte `dynamodbav:"v"`
}

func NewClient(cfg aws.Config, endpoint *string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
}

func NewStore(ctx context.Context, client dynamoAPI, tableName string) (*Storage, error) {
	if tableName == "" {
		tableName = DefaultTableName
	}
	s := &Storage{
		client:    client,
		tableName: tableName,
	}
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) ensureTable(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("pk"),
				KeyType:       types.KeyTypeHash,
			},
			{
				AttributeName: aws.String("sk"),
				KeyType:       types.KeyTypeRange,
			},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("pk"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("sk"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return fmt.Errorf("failed to create table %s: %w", s.tableName, err)
		}
	} else {
		log.Printf("Created table %s", s.tableName)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client, func(o *dynamodb.TableExistsWaiterOptions) {
		o.MinDelay = 500 * time.Millisecond
		o.MaxDelay = 2 * time.Second
	})
	err = waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	}, tableWaitTimeout)
	if err != nil {
		return fmt.Errorf("table %s not ready: %w", s.tableName, err)
	}
	return nil
}

func (s *Storage) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: partitionKey},
		"sk": &types.AttributeValueMemberS{Value: key},
	}
}

func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w: %v", key, domain.ErrStorageFail, err)
	}
	if output.Item == nil {
		return nil, domain.ErrKeyNotFound
	}

	var item kvItem
	if err := attributevalue.UnmarshalMap(output.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", key, domain.ErrStorageFail)
	}
	return item.Value, nil
}

func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	return s.put(ctx, key, value, nil)
}

func (s *Storage) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	err := s.put(ctx, key, value, aws.String("attribute_not_exists(sk)"))
	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Storage) put(ctx context.Context, key string, value []byte, condition *string) error {
	av, err := attributevalue.MarshalMap(kvItem{
		PK:    partitionKey,
		SK:    key,
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, domain.ErrStorageFail)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: condition,
	})
	if err != nil {
		var failed *types.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return err
		}
		return fmt.Errorf("failed to put %s: %w: %v", key, domain.ErrStorageFail, err)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.itemKey(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w: %v", key, domain.ErrStorageFail, err)
	}
	return nil
}

func (s *Storage) Scan(ctx context.Context, prefix string) ([]domain.Item, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: partitionKey},
			":prefix": &types.AttributeValueMemberS{Value: prefix},
		},
		ConsistentRead: aws.Bool(true),
	}

	items := make([]domain.Item, 0)
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w: %v", prefix, domain.ErrStorageFail, err)
		}
		for _, av := range page.Items {
			var item kvItem
			if err := attributevalue.UnmarshalMap(av, &item); err != nil {
				continue
			}
			items = append(items, domain.Item{Key: item.SK, Value: item.Value})
		}
	}
	return items, nil
}

func (s *Storage) Close() error {
	return nil
}
