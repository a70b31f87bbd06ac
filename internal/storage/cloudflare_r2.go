package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// CloudflareR2Storage - R2 совместим с S3, поэтому используется aws-sdk-go.
type CloudflareR2Storage struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	baseURL  string
}

func NewCloudflareR2Storage(cfg Config) (*CloudflareR2Storage, error) {
	// https://<account_id>.r2.cloudflarestorage.com
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required for Cloudflare R2")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required for Cloudflare R2")
	}

	awsConfig := &aws.Config{
		Region:           aws.String("auto"),
		Endpoint:         aws.String(cfg.Endpoint),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create R2 session: %w", err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.r2.dev", cfg.Bucket)
	}

	return &CloudflareR2Storage{
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   cfg.Bucket,
		baseURL:  baseURL,
	}, nil
}

func (s *CloudflareR2Storage) Save(ctx context.Context, path string, reader io.Reader, contentType string) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path),
		Body:        reader,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to R2: %w", err)
	}
	return nil
}

func (s *CloudflareR2Storage) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get from R2: %w", err)
	}
	return result.Body, nil
}

// Exists отличает отсутствие объекта от сетевой ошибки
func (s *CloudflareR2Storage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err == nil {
		return true, nil
	}

	var aerr awserr.RequestFailure
	if errors.As(err, &aerr) && aerr.StatusCode() == 404 {
		return false, nil
	}
	return false, fmt.Errorf("failed to check R2 object: %w", err)
}

func (s *CloudflareR2Storage) GetURL(ctx context.Context, path string) (string, error) {
	return fmt.Sprintf("%s/%s", s.baseURL, path), nil
}
