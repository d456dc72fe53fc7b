package dynamostore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/kvstore/kvstoretest"
)

// fakeDynamo understands exactly the requests Storage sends.
type fakeDynamo struct {
	mu       sync.Mutex
	created  bool
	items    map[string]map[string]types.AttributeValue
	pageSize int
	queries  int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		items:    make(map[string]map[string]types.AttributeValue),
		pageSize: 2,
	}
}

func skOf(key map[string]types.AttributeValue) string {
	return key["sk"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[skOf(params.Key)]}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sk := skOf(params.Item)
	if aws.ToString(params.ConditionExpression) == "attribute_not_exists(sk)" {
		if _, ok := f.items[sk]; ok {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	}
	f.items[sk] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, skOf(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++

	prefix := params.ExpressionAttributeValues[":prefix"].(*types.AttributeValueMemberS).Value
	keys := make([]string, 0)
	for k := range f.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if params.ExclusiveStartKey != nil {
		last := skOf(params.ExclusiveStartKey)
		start = sort.SearchStrings(keys, last) + 1
	}
	end := start + f.pageSize
	if end > len(keys) {
		end = len(keys)
	}

	out := &dynamodb.QueryOutput{}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, f.items[k])
	}
	if end < len(keys) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: partitionKey},
			"sk": &types.AttributeValueMemberS{Value: keys[end-1]},
		}
	}
	return out, nil
}

func (f *fakeDynamo) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.created {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found")}
	}
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{
			TableName:   params.TableName,
			TableStatus: types.TableStatusActive,
		},
	}, nil
}

func (f *fakeDynamo) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.created {
		return nil, &types.ResourceInUseException{Message: aws.String("table exists")}
	}
	f.created = true
	return &dynamodb.CreateTableOutput{}, nil
}

func TestStorage(t *testing.T) {
	kvstoretest.Run(t, func(t *testing.T) domain.KeyValueStore {
		s, err := NewStore(context.Background(), newFakeDynamo(), "")
		if err != nil {
			t.Fatalf("NewStore() error = %v", err)
		}
		return s
	})
}

func TestStorage_ScanPaginates(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	s, err := NewStore(ctx, fake, "fleet")
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"i-001", "i-002", "i-003", "i-004", "i-005"} {
		if err := s.Set(ctx, "watch:"+id, []byte(id)); err != nil {
			t.Fatal(err)
		}
	}

	items, err := s.Scan(ctx, "watch:")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(items) != 5 {
		t.Errorf("items = %d, want 5", len(items))
	}
	if fake.queries != 3 {
		t.Errorf("queries = %d, want 3", fake.queries)
	}
}

func TestNewStore_ExistingTable(t *testing.T) {
	fake := newFakeDynamo()
	fake.created = true

	s, err := NewStore(context.Background(), fake, "")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if s.tableName != DefaultTableName {
		t.Errorf("tableName = %s", s.tableName)
	}
}

type failingDynamo struct {
	*fakeDynamo
}

func (f failingDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return nil, errors.New("throttled")
}

func TestStorage_GetFailure(t *testing.T) {
	fake := newFakeDynamo()
	fake.created = true
	s, err := NewStore(context.Background(), failingDynamo{fake}, "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(context.Background(), "watch:i-001"); !errors.Is(err, domain.ErrStorageFail) {
		t.Errorf("Get() error = %v, want ErrStorageFail", err)
	}
}
