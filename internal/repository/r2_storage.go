package repository

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appConfig "github.com/mansoorceksport/upload-server/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// R2Repository implements domain.ObjectUploader on top of an S3-compatible client
// (Cloudflare R2 in production, MinIO or SeaweedFS locally)
type R2Repository struct {
	client   *s3.Client
	uploader *manager.Uploader
}

// NewR2Repository creates a new storage repository
func NewR2Repository(ctx context.Context, cfg appConfig.StorageConfig) (*R2Repository, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.ResolvedEndpoint())
		o.UsePathStyle = true
		// R2 rejects the default trailing checksums on streamed bodies
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return newR2Repository(client, cfg), nil
}

func newR2Repository(client *s3.Client, cfg appConfig.StorageConfig) *R2Repository {
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSizeMB > 0 {
			u.PartSize = cfg.PartSizeMB * 1024 * 1024
		}
		if cfg.UploadConcurrency > 0 {
			u.Concurrency = cfg.UploadConcurrency
		}
	})

	return &R2Repository{
		client:   client,
		uploader: uploader,
	}
}

// Upload streams body to bucket/key, switching to multipart for large bodies
func (r *R2Repository) Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	tracer := otel.Tracer("s3")
	ctx, span := tracer.Start(ctx, "s3.Upload",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("s3.bucket", bucket),
			attribute.String("s3.key", key),
			attribute.String("s3.content_type", contentType),
		),
	)
	defer span.End()

	out, err := r.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to upload %s to bucket %s: %w", key, bucket, err)
	}

	if out.ETag != nil {
		span.SetAttributes(attribute.String("s3.etag", *out.ETag))
	}
	span.SetAttributes(attribute.Int("s3.parts", len(out.CompletedParts)))
	return nil
}

// CheckBucket verifies the bucket is reachable with the configured credentials.
// It never creates buckets.
func (r *R2Repository) CheckBucket(ctx context.Context, bucket string) error {
	_, err := r.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s is not reachable: %w", bucket, err)
	}
	return nil
}
