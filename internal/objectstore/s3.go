package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cuongbtq/assessment-reports/internal/config"
)

// PutObjectAPI is the subset of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PresignGetObjectAPI is the subset of the S3 presign client used here.
type PresignGetObjectAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store uploads with mandatory server-side encryption.
type S3Store struct {
	client    PutObjectAPI
	presigner PresignGetObjectAPI
	bucket    string
	sse       types.ServerSideEncryption
	kmsKeyID  string
	logger    *slog.Logger
}

// NewS3Store builds an S3Store from the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return NewS3StoreWithAPI(client, s3.NewPresignClient(client), cfg, logger), nil
}

// NewS3StoreWithAPI wraps existing S3 clients.
func NewS3StoreWithAPI(client PutObjectAPI, presigner PresignGetObjectAPI, cfg config.StorageConfig, logger *slog.Logger) *S3Store {
	if logger == nil {
		logger = slog.Default()
	}

	sse := types.ServerSideEncryptionAes256
	if cfg.Encryption.Mode == config.EncryptionKMS {
		sse = types.ServerSideEncryptionAwsKms
	}

	return &S3Store{
		client:    client,
		presigner: presigner,
		bucket:    cfg.Bucket,
		sse:       sse,
		kmsKeyID:  cfg.Encryption.KMSKeyID,
		logger:    logger,
	}
}

// Bucket returns the destination bucket.
func (s *S3Store) Bucket() string {
	return s.bucket
}

// Upload puts the file at localPath under key.
func (s *S3Store) Upload(ctx context.Context, key, localPath string) (Object, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return Object{}, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 f,
		ContentType:          aws.String("application/pdf"),
		ServerSideEncryption: s.sse,
	}
	if s.sse == types.ServerSideEncryptionAwsKms && s.kmsKeyID != "" {
		input.SSEKMSKeyId = aws.String(s.kmsKeyID)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Object{}, fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, key, err)
	}

	s.logger.Info("Uploaded artifact",
		slog.String("bucket", s.bucket),
		slog.String("key", key),
		slog.String("sse", string(s.sse)),
	)
	return Object{Bucket: s.bucket, Key: key}, nil
}

// PresignGet signs a GET for obj valid for ttl from now.
func (s *S3Store) PresignGet(ctx context.Context, obj Object, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign s3://%s/%s: %w", obj.Bucket, obj.Key, err)
	}
	return req.URL, nil
}
