package uploads

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	// ErrUploadsDisabled is returned when no object storage is configured.
	ErrUploadsDisabled = errors.New("uploads disabled: no object storage configured")
	// ErrInvalidImage is returned for payloads that are not base64 data URIs.
	ErrInvalidImage = errors.New("invalid image payload")
)

// Uploader stores a client-submitted image and returns a retrievable URL.
type Uploader interface {
	Upload(ctx context.Context, dataURI string) (string, error)
}

// Config holds object storage settings.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PublicURL string
}

// New builds an S3 uploader, or a disabled one when storage is unconfigured.
func New(ctx context.Context, cfg Config) (Uploader, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" {
		return disabledUploader{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "")))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &s3Uploader{client: client, cfg: cfg}, nil
}

type s3Uploader struct {
	client *s3.Client
	cfg    Config
}

// Upload decodes a base64 data URI and stores it under a date/uuid key.
func (u *s3Uploader) Upload(ctx context.Context, dataURI string) (string, error) {
	contentType, data, err := decodeDataURI(dataURI)
	if err != nil {
		return "", err
	}

	key := storageKey(contentType)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	if u.cfg.PublicURL != "" {
		return strings.TrimRight(u.cfg.PublicURL, "/") + "/" + key, nil
	}
	return strings.TrimRight(u.cfg.Endpoint, "/") + "/" + u.cfg.Bucket + "/" + key, nil
}

type disabledUploader struct{}

func (disabledUploader) Upload(context.Context, string) (string, error) {
	return "", ErrUploadsDisabled
}

func storageKey(contentType string) string {
	now := time.Now()
	ext := "bin"
	if idx := strings.Index(contentType, "/"); idx >= 0 && idx < len(contentType)-1 {
		ext = contentType[idx+1:]
	}
	return fmt.Sprintf("images/%d/%d/%d/%s.%s", now.Year(), now.Month(), now.Day(), uuid.New(), ext)
}

// decodeDataURI splits "data:image/png;base64,<payload>" into content type
// and raw bytes. Bare base64 without a prefix is accepted as image/jpeg.
func decodeDataURI(dataURI string) (string, []byte, error) {
	contentType := "image/jpeg"
	payload := dataURI

	if strings.HasPrefix(dataURI, "data:") {
		idx := strings.Index(dataURI, ",")
		if idx < 0 {
			return "", nil, ErrInvalidImage
		}
		meta := dataURI[len("data:"):idx]
		payload = dataURI[idx+1:]
		if !strings.HasSuffix(meta, ";base64") {
			return "", nil, ErrInvalidImage
		}
		contentType = strings.TrimSuffix(meta, ";base64")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, ErrInvalidImage
	}
	if len(data) == 0 {
		return "", nil, ErrInvalidImage
	}
	return contentType, data, nil
}
