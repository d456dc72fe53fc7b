package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

const (
	DefaultBucketName = "quickfleet-journal"
	keyPrefix         = "journal/"
)

type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Journal stores one object per operator action, keyed by day.
type S3Journal struct {
	client     s3API
	bucketName string
}

func NewS3Client(cfg aws.Config, endpoint *string) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
			o.UsePathStyle = true
		}
	})
}

func NewS3Journal(ctx context.Context, client s3API, bucketName string) (*S3Journal, error) {
	if bucketName == "" {
		bucketName = DefaultBucketName
	}
	j := &S3Journal{
		client:     client,
		bucketName: bucketName,
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := j.ensureBucketExists(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}
	return j, nil
}

func (j *S3Journal) ensureBucketExists(ctx context.Context) error {
	_, err := j.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(j.bucketName),
	})
	if err == nil {
		return nil
	}

	_, err = j.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(j.bucketName),
	})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (j *S3Journal) Record(ctx context.Context, entry *domain.JournalEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	_, err = j.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(j.bucketName),
		Key:         aws.String(objectKey(entry)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to save journal entry: %w", err)
	}
	return nil
}

func objectKey(entry *domain.JournalEntry) string {
	at := entry.At.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return fmt.Sprintf("%s%s/%s-%s-%s.json",
		keyPrefix,
		at.Format("2006/01/02"),
		at.Format("150405.000"),
		entry.InstanceID,
		uuid.New().String()[:8],
	)
}
