// Package storage uploads chat images and avatars to an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"realtime-chat/internal/config"
)

var (
	ErrInvalidImage  = errors.New("invalid image data")
	ErrStoreDisabled = errors.New("object store not configured")
)

// Uploader stores a base64 image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, base64Image string) (string, error)
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader writes objects with PutObject and builds public URLs from a base URL.
type S3Uploader struct {
	client        putObjectAPI
	bucket        string
	publicBaseURL string
	now           func() time.Time
}

// NewS3Uploader configures a client against cfg.Endpoint with static credentials.
func NewS3Uploader(ctx context.Context, cfg config.S3) (*S3Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	base := cfg.PublicBaseURL
	if base == "" {
		base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return newS3Uploader(client, cfg.Bucket, base), nil
}

func newS3Uploader(client putObjectAPI, bucket, publicBaseURL string) *S3Uploader {
	return &S3Uploader{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}
}

func (u *S3Uploader) Upload(ctx context.Context, base64Image string) (string, error) {
	body, contentType, err := decodeImage(base64Image)
	if err != nil {
		return "", err
	}

	key := u.objectKey(contentType)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return u.publicBaseURL + "/" + key, nil
}

func (u *S3Uploader) objectKey(contentType string) string {
	d := u.now().UTC()
	return fmt.Sprintf("images/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.NewString(), extension(contentType))
}

// decodeImage accepts either a data URL or bare base64 and sniffs the content type.
func decodeImage(data string) ([]byte, string, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, "", ErrInvalidImage
	}
	if strings.HasPrefix(data, "data:") {
		comma := strings.Index(data, ",")
		if comma < 0 || !strings.HasSuffix(data[:comma], ";base64") {
			return nil, "", ErrInvalidImage
		}
		data = data[comma+1:]
	}

	body, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, "", errors.Join(ErrInvalidImage, err)
	}
	contentType := http.DetectContentType(body)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", ErrInvalidImage
	}
	return body, contentType, nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

// DisabledUploader rejects uploads when no object store is configured.
type DisabledUploader struct{}

func (DisabledUploader) Upload(ctx context.Context, base64Image string) (string, error) {
	return "", ErrStoreDisabled
}
