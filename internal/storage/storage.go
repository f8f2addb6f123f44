package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "github.com/followread/backend/internal/errors"
	"github.com/followread/backend/internal/logger"
)

// Config holds the configuration for the archive storage client
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Archiver copies completed downloads into S3-compatible object storage.
// Uploads go through minio-go; presigned links are issued with the AWS
// SDK so they work against both MinIO and real S3.
type Archiver struct {
	client  *minio.Client
	presign *s3.PresignClient
	bucket  string
	log     *logger.Logger
}

// ArchiveMetadata describes the archived media object
type ArchiveMetadata struct {
	ExternalID   string `json:"external_id"`
	Title        string `json:"title"`
	DownloadType string `json:"download_type"`
	SourceURL    string `json:"source_url"`
	ArchivedAt   string `json:"archived_at"`
}

// New creates a new archive storage client
func New(cfg *Config) (*Archiver, error) {
	// minio-go expects host:port without a scheme
	endpoint := cfg.Endpoint
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	s3Client := s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  awscreds.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		BaseEndpoint: aws.String(scheme + "://" + endpoint),
		UsePathStyle: true,
	})

	return &Archiver{
		client:  client,
		presign: s3.NewPresignClient(s3Client),
		bucket:  cfg.Bucket,
		log:     logger.Default().WithComponent("storage"),
	}, nil
}

// mediaKey returns the object key for an archived media file
func mediaKey(externalID, downloadType, filePath string) string {
	ext := filepath.Ext(filePath)
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("archive/%s/%s%s", externalID, downloadType, ext)
}

func metadataKey(externalID, downloadType string) string {
	return fmt.Sprintf("archive/%s/%s.json", externalID, downloadType)
}

func contentTypeFor(filePath string) string {
	switch filepath.Ext(filePath) {
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}

// Archive uploads a downloaded file and its metadata document. The
// local file stays on disk; the archive is a copy, not a move.
func (a *Archiver) Archive(ctx context.Context, filePath string, meta ArchiveMetadata) (string, error) {
	meta.ArchivedAt = time.Now().UTC().Format(time.RFC3339)

	key := mediaKey(meta.ExternalID, meta.DownloadType, filePath)

	err := apperrors.Retry(ctx, apperrors.StorageRetryConfig(), func(ctx context.Context) error {
		file, err := os.Open(filePath)
		if err != nil {
			return err
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil {
			return err
		}

		_, err = a.client.PutObject(ctx, a.bucket, key, file, info.Size(), minio.PutObjectOptions{
			ContentType: contentTypeFor(filePath),
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", key, err)
	}

	doc, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal archive metadata: %w", err)
	}

	metaKey := metadataKey(meta.ExternalID, meta.DownloadType)
	_, err = a.client.PutObject(ctx, a.bucket, metaKey, strings.NewReader(string(doc)), int64(len(doc)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		// the media object is the valuable part, keep it
		a.log.Warn(ctx, "failed to archive metadata document", map[string]interface{}{
			"key":   metaKey,
			"error": err.Error(),
		})
	}

	return key, nil
}

// Exists checks whether an archived object is present
func (a *Archiver) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.StatObject(ctx, a.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object %s: %w", key, err)
	}
	return true, nil
}

// Get retrieves an archived object for streaming back to a client
func (a *Archiver) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return obj, nil
}

// PresignedURL issues a time-limited GET link for an archived object
func (a *Archiver) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Delete removes an archived object
func (a *Archiver) Delete(ctx context.Context, key string) error {
	if err := a.client.RemoveObject(ctx, a.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// EnsureBucket creates the archive bucket if it doesn't exist
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
		}
	}
	return nil
}

// Ping checks if the storage is accessible
func (a *Archiver) Ping(ctx context.Context) error {
	_, err := a.client.BucketExists(ctx, a.bucket)
	return err
}
