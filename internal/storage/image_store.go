// internal/storage/image_store.go
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/IlyaZolotarev/wordcard/internal/config"
	"github.com/IlyaZolotarev/wordcard/internal/middleware"
)

// ImageStore is the object storage for card images. Keys are laid out as
// <owner>/<uuid>.jpg; the store hands out signed URLs that are persisted on
// the card row.
type ImageStore interface {
	Upload(ctx context.Context, owner string, data []byte, contentType string) (signedURL string, err error)
	SignedURL(ctx context.Context, key string) (string, error)
	// Delete removes the given object keys. Missing objects are not an
	// error.
	Delete(ctx context.Context, keys []string) error
	// KeyFromSignedURL extracts the storage key out of a signed URL
	// previously issued by this store. ok is false for foreign or local
	// image references.
	KeyFromSignedURL(rawURL string) (key string, ok bool)
}

type s3ImageStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     *config.S3Config
}

// NewS3ImageStore builds the S3 client, switching between static
// credentials and the ambient IAM role the same way the mail sender does.
func NewS3ImageStore(cfg *config.Config) (ImageStore, error) {
	var awsCfgOpts []func(*awsconfig.LoadOptions) error
	awsCfgOpts = append(awsCfgOpts, awsconfig.WithRegion(cfg.S3.Region))

	switch cfg.S3.AuthType {
	case "static_credentials":
		slog.Info("Configuring S3 with static credentials.")
		if cfg.S3.AccessKeyID == "" || cfg.S3.SecretAccessKey == "" {
			return nil, fmt.Errorf("s3 auth_type is static_credentials but access_key_id or secret_access_key is missing")
		}
		creds := credentials.NewStaticCredentialsProvider(
			cfg.S3.AccessKeyID,
			cfg.S3.SecretAccessKey,
			"",
		)
		awsCfgOpts = append(awsCfgOpts, awsconfig.WithCredentialsProvider(creds))
	case "iam_role":
		slog.Info("Configuring S3 with IAM Role credentials.")
	default:
		slog.Warn("Unknown S3 auth_type specified, defaulting to IAM Role.", "type", cfg.S3.AuthType)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsCfgOpts...)
	if err != nil {
		slog.Error("Failed to load AWS config for S3", "error", err)
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg)
	return &s3ImageStore{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     &cfg.S3,
	}, nil
}

func (s *s3ImageStore) Upload(ctx context.Context, owner string, data []byte, contentType string) (string, error) {
	logger := middleware.GetLogger(ctx)

	key := fmt.Sprintf("%s/%s.jpg", owner, uuid.New().String())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		logger.Error("Failed to upload image object", "error", err, "key", key)
		return "", fmt.Errorf("s3ImageStore.Upload: %w", err)
	}

	signedURL, err := s.SignedURL(ctx, key)
	if err != nil {
		return "", err
	}
	logger.Info("Image uploaded", "key", key)
	return signedURL, nil
}

func (s *s3ImageStore) SignedURL(ctx context.Context, key string) (string, error) {
	logger := middleware.GetLogger(ctx)
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.SignedURLTTL))
	if err != nil {
		logger.Error("Failed to presign image URL", "error", err, "key", key)
		return "", fmt.Errorf("s3ImageStore.SignedURL: %w", err)
	}
	return req.URL, nil
}

func (s *s3ImageStore) Delete(ctx context.Context, keys []string) error {
	logger := middleware.GetLogger(ctx)
	for _, key := range keys {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			logger.Error("Failed to delete image object", "error", err, "key", key)
			return fmt.Errorf("s3ImageStore.Delete: %w", err)
		}
	}
	return nil
}

func (s *s3ImageStore) KeyFromSignedURL(rawURL string) (string, bool) {
	return ObjectKeyFromSignedURL(rawURL, s.cfg.Bucket)
}

// ObjectKeyFromSignedURL strips scheme, host, query and signature from a
// signed object URL, leaving the bucket-relative key. Handles both
// virtual-hosted (bucket in the host) and path-style URLs.
func ObjectKeyFromSignedURL(rawURL, bucket string) (string, bool) {
	if rawURL == "" {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		return "", false
	}
	key := strings.TrimPrefix(u.Path, "/")
	if bucket != "" {
		key = strings.TrimPrefix(key, bucket+"/")
	}
	if key == "" {
		return "", false
	}
	return key, true
}
