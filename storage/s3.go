// Package storage issues presigned upload URLs for business logos.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"invoicing-backend/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	ErrNotConfigured   = errors.New("object storage is not configured")
	ErrUnsupportedType = errors.New("unsupported image type")
)

var allowedImageTypes = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

type Upload struct {
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Store struct {
	presign   *s3.PresignClient
	bucket    string
	publicURL string
	ttl       time.Duration
}

// New builds an S3-compatible store (AWS, R2, MinIO). Returns ErrNotConfigured when no bucket is set.
func New(ctx context.Context, cfg *config.Config) (*Store, error) {
	sc := cfg.Storage
	if sc.Bucket == "" {
		return nil, ErrNotConfigured
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(sc.Region)}
	if sc.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(sc.AccessKey, sc.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if sc.Endpoint != "" {
			o.BaseEndpoint = aws.String(sc.Endpoint)
			o.UsePathStyle = true
		}
	})

	ttl := time.Duration(sc.PresignMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Store{
		presign:   s3.NewPresignClient(client),
		bucket:    sc.Bucket,
		publicURL: strings.TrimRight(sc.PublicBaseURL, "/"),
		ttl:       ttl,
	}, nil
}

// LogoKey is the object key a business logo is stored under.
func LogoKey(businessID, contentType string) (string, error) {
	ext, ok := allowedImageTypes[strings.ToLower(contentType)]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnsupportedType, contentType)
	}
	return path.Join("logos", businessID, uuid.NewString()+ext), nil
}

// PresignLogoUpload returns a PUT URL the browser uploads the logo to directly.
func (s *Store) PresignLogoUpload(ctx context.Context, businessID, contentType string) (*Upload, error) {
	key, err := LogoKey(businessID, contentType)
	if err != nil {
		return nil, err
	}
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return &Upload{
		UploadURL: req.URL,
		PublicURL: s.publicURL + "/" + key,
		Key:       key,
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}, nil
}
