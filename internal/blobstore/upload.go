package blobstore

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"clipforge/internal/config"
	"clipforge/internal/faults"
	"clipforge/internal/fileutil"
)

// Uploader publishes a finished artifact to durable storage and returns
// its serving URI.
type Uploader interface {
	Upload(ctx context.Context, localPath, objectName string) (string, error)
}

// NewUploaderFromConfig selects the configured storage backend.
func NewUploaderFromConfig(cfg *config.Config) (Uploader, error) {
	switch cfg.Storage.Backend {
	case "local":
		return NewLocalUploader(cfg.Storage.LocalDir, cfg.Storage.BaseURL), nil
	case "s3":
		return NewS3Uploader(cfg.Storage)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// LocalUploader publishes into a CDN-backed directory.
type LocalUploader struct {
	dir     string
	baseURL string
}

// NewLocalUploader constructs a directory-backed uploader.
func NewLocalUploader(dir, baseURL string) *LocalUploader {
	return &LocalUploader{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// Upload copies the artifact into the published directory with hash
// verification so a torn copy never becomes a servable object.
func (u *LocalUploader) Upload(ctx context.Context, localPath, objectName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", faults.UploadTimeout("upload canceled", err)
	}
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return "", faults.Classify(fmt.Errorf("create published directory: %w", err))
	}
	destination := filepath.Join(u.dir, objectName)
	if err := fileutil.CopyFileVerified(localPath, destination); err != nil {
		return "", faults.Classify(fmt.Errorf("publish %s: %w", objectName, err))
	}
	return u.baseURL + "/" + objectName, nil
}

// S3Uploader publishes into an S3-compatible bucket.
type S3Uploader struct {
	client    *s3.Client
	bucket    string
	publicURL string
	timeout   time.Duration
}

// NewS3Uploader constructs a bucket-backed uploader from the storage
// configuration. A custom endpoint targets S3-compatible providers.
func NewS3Uploader(storage config.Storage) (*S3Uploader, error) {
	if storage.Bucket == "" || storage.AccessKeyID == "" || storage.SecretAccessKey == "" {
		return nil, errors.New("s3 storage configuration incomplete")
	}

	region := storage.Region
	if region == "" {
		region = "auto"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			storage.AccessKeyID,
			storage.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load storage credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(storage.Endpoint)
		}
	})

	return &S3Uploader{
		client:    client,
		bucket:    storage.Bucket,
		publicURL: strings.TrimRight(storage.PublicURL, "/"),
		timeout:   time.Duration(storage.TimeoutSeconds) * time.Second,
	}, nil
}

// Upload writes the artifact as a bucket object and returns its public
// URL.
func (u *S3Uploader) Upload(ctx context.Context, localPath, objectName string) (string, error) {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	file, err := os.Open(localPath)
	if err != nil {
		return "", faults.UploadFailed(fmt.Sprintf("open artifact %s", filepath.Base(localPath)), err)
	}
	defer file.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(objectName),
		Body:        file,
		ContentType: aws.String(contentTypeFor(objectName)),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", faults.UploadTimeout(fmt.Sprintf("upload of %s exceeded %s", objectName, u.timeout), err)
		}
		return "", faults.UploadFailed(fmt.Sprintf("put object %s", objectName), err).
			With("bucket", u.bucket)
	}

	if u.publicURL != "" {
		return u.publicURL + "/" + objectName, nil
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, objectName), nil
}

func contentTypeFor(objectName string) string {
	if t := mime.TypeByExtension(filepath.Ext(objectName)); t != "" {
		return t
	}
	return "application/octet-stream"
}
