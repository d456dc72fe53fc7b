package kvstore

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/awsconfig"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/kvstore/boltstore"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/kvstore/dynamostore"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/kvstore/memstore"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/kvstore/mysqlstore"
	"github.com/kavos113/quickfleet/fleet-manager/infrastructure/kvstore/redisstore"
)

const (
	BackendBolt     = "bolt"
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"
	BackendMySQL    = "mysql"
	BackendMemory   = "memory"
)

type Config struct {
	Backend       string
	StoragePath   string
	DynamoTable   string
	RedisAddress  string
	RedisPassword string
}

func NewConfigFromEnv() *Config {
	return &Config{
		Backend:       strings.ToLower(getEnv("STORE_BACKEND", BackendBolt)),
		StoragePath:   getEnv("STORAGE_PATH", "./data"),
		DynamoTable:   getEnv("DYNAMODB_TABLE", dynamostore.DefaultTableName),
		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}
}

// Open connects the configured backend. aws is only read for dynamodb.
func Open(ctx context.Context, c *Config, aws *awsconfig.Config) (domain.KeyValueStore, error) {
	switch c.Backend {
	case BackendBolt, "":
		s, err := boltstore.NewStore(c.StoragePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMemory:
		return memstore.NewStore(), nil
	case BackendRedis:
		client, err := redisstore.NewClient(c.RedisAddress, c.RedisPassword)
		if err != nil {
			return nil, err
		}
		return redisstore.NewStore(client, ""), nil
	case BackendMySQL:
		db, err := mysqlstore.Connect(ctx, mysqlstore.NewConfigFromEnv())
		if err != nil {
			return nil, err
		}
		s, err := mysqlstore.NewStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	case BackendDynamoDB:
		cfg, err := awsconfig.Load(ctx, aws)
		if err != nil {
			return nil, err
		}
		s, err := dynamostore.NewStore(ctx, dynamostore.NewClient(cfg, aws.BaseEndpoint()), c.DynamoTable)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", c.Backend)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
