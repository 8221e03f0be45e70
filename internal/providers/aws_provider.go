package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// AWSProvider implements the StorageProvider interface for AWS S3 and
// S3-compatible services reached through the AWS SDK.
type AWSProvider struct {
	client  *s3.Client
	presign *s3.PresignClient
	config  *StorageConfig
}

// NewAWSProvider creates a new AWS S3 provider.
func NewAWSProvider(cfg *StorageConfig) (*AWSProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AWS S3 config: %w", err)
	}
	if cfg.Region == "" {
		return nil, ErrMissingRegion
	}

	awsConfig, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, NewStorageError("aws", "configure", "", err)
	}

	var s3Client *s3.Client
	if cfg.Endpoint != "" && cfg.Endpoint != "https://s3.amazonaws.com" {
		// Custom endpoint (for S3-compatible services)
		s3Client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		})
	} else {
		s3Client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			o.UsePathStyle = cfg.PathStyle
		})
	}

	return &AWSProvider{
		client:  s3Client,
		presign: s3.NewPresignClient(s3Client),
		config:  cfg,
	}, nil
}

// EnsureBucket creates the configured bucket when it does not exist.
func (p *AWSProvider) EnsureBucket(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(p.config.Bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return NewStorageError("aws", "head_bucket", "", err)
	}

	input := &s3.CreateBucketInput{
		Bucket: aws.String(p.config.Bucket),
	}
	if p.config.Region != "" && p.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(p.config.Region),
		}
	}

	if _, err := p.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return NewStorageError("aws", "create_bucket", "", err)
	}

	return nil
}

// Upload writes data directly to the specified key.
func (p *AWSProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*UploadResult, error) {
	result, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.config.Bucket),
		Key:           aws.String(key),
		Body:          reader,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, NewStorageError("aws", "upload", key, err)
	}

	return &UploadResult{
		Key:       key,
		PublicURL: p.PublicURL(key),
		Size:      size,
		ETag:      aws.ToString(result.ETag),
		Provider:  "aws",
	}, nil
}

// PresignPut produces a signed, time-limited PUT URL for key.
func (p *AWSProvider) PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (*SignedUpload, error) {
	req, err := p.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.config.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return nil, NewStorageError("aws", "presign_put", key, err)
	}

	return &SignedUpload{
		URL:    req.URL,
		Method: req.Method,
		Headers: map[string]string{
			"Content-Type": contentType,
		},
		ExpiresAt: time.Now().Add(expires),
	}, nil
}

// PublicURL returns the public URL for accessing the object at key.
func (p *AWSProvider) PublicURL(key string) string {
	return p.config.GetPublicURL(key)
}

// HealthCheck verifies the provider connection and configuration.
func (p *AWSProvider) HealthCheck(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(p.config.Bucket),
	})
	if err != nil {
		return NewStorageError("aws", "health_check", "", err)
	}
	return nil
}
