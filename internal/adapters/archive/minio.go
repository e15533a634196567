// Package archive uploads exported quote snapshots to S3-compatible object
// storage.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

var _ ports.SnapshotArchiver = (*MinioArchiver)(nil)

// Config configures a MinioArchiver.
type Config struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Logger    *slog.Logger
}

// MinioArchiver stores snapshots as JSON objects under Prefix in Bucket.
type MinioArchiver struct {
	client *minio.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewMinio creates an archiver. No request is made until the first call.
func NewMinio(cfg Config) (*MinioArchiver, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("archive: endpoint and bucket are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	return &MinioArchiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger.With(slog.String("component", "archive.minio")),
	}, nil
}

// Archive uploads data as name and returns its bucket/key location.
func (a *MinioArchiver) Archive(ctx context.Context, name string, data []byte) (string, error) {
	key := a.objectKey(name)

	info, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  "application/json",
			UserMetadata: map[string]string{"generator": "quote-sync"},
		},
	)
	if err != nil {
		return "", mapError(err, "put object "+key)
	}

	a.logger.InfoContext(ctx, "snapshot uploaded",
		slog.String("bucket", info.Bucket),
		slog.String("key", info.Key),
		slog.Int64("size", info.Size),
	)

	return a.bucket + "/" + key, nil
}

// Name implements ports.HealthChecker.
func (a *MinioArchiver) Name() string { return "archive" }

// Check verifies the bucket exists.
func (a *MinioArchiver) Check(ctx context.Context) error {
	ok, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return mapError(err, "bucket lookup")
	}

	if !ok {
		return domain.NewUnavailableError("archive", "bucket "+a.bucket+" does not exist")
	}

	return nil
}

func (a *MinioArchiver) objectKey(name string) string {
	if a.prefix == "" {
		return name
	}

	return path.Join(a.prefix, name)
}

// mapError turns minio failures into domain errors. Access problems are
// forbidden; everything else is unavailable.
func mapError(err error, op string) error {
	resp := minio.ToErrorResponse(err)

	switch resp.Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("%s: %w", op, domain.NewForbiddenError("archive", resp.Message))
	case "NoSuchBucket":
		return fmt.Errorf("%s: %w", op, domain.NewUnavailableError("archive", "bucket does not exist"))
	}

	return fmt.Errorf("%s: %w", op, domain.NewUnavailableError("archive", err.Error()))
}
