package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// maxBackupSize bounds how large a restored snapshot may be, guarding
// against unbounded memory allocation from a corrupted or oversized object.
const maxBackupSize = 500 << 20

// S3Client is the subset of the AWS S3 client API this package depends on,
// kept narrow so tests can inject a stand-in.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Backup periodically snapshots a CSV export of submissions to S3. It
// does not participate in request-path reads or writes; storage.Adapter
// remains the source of truth.
type S3Backup struct {
	adapter *Adapter
	client  S3Client
	bucket  string
	key     string

	mu sync.Mutex
}

// NewS3Backup returns a backup helper writing to
// s3://<bucket>/<keyPrefix>/submissions.csv.
func NewS3Backup(adapter *Adapter, client S3Client, bucket, keyPrefix string) *S3Backup {
	return &S3Backup{adapter: adapter, client: client, bucket: bucket, key: keyPrefix + "/submissions.csv"}
}

// Persist exports all submissions and uploads them as one CSV object.
func (b *S3Backup) Persist(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var buf bytes.Buffer
	if err := b.adapter.ExportSubmissions(ctx, &buf); err != nil {
		return err
	}

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &b.bucket,
		Key:         &b.key,
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: strPtr("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("storage: upload submissions backup: %w", err)
	}

	slog.Debug("persisted submissions backup to S3",
		"bucket", b.bucket, "key", b.key, "bytes", buf.Len(),
	)
	return nil
}

// FetchLatest returns the bytes of the most recently persisted CSV
// backup, or (nil, nil) if none has been written yet.
func (b *S3Backup) FetchLatest(ctx context.Context) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &b.bucket, Key: &b.key})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			slog.Warn("no existing submissions backup found", "bucket", b.bucket, "key", b.key)
			return nil, nil
		}
		return nil, fmt.Errorf("storage: fetch submissions backup: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxBackupSize+1))
	if err != nil {
		return nil, fmt.Errorf("storage: read submissions backup: %w", err)
	}
	if len(data) > maxBackupSize {
		return nil, fmt.Errorf("storage: submissions backup exceeds maximum allowed size of %d bytes", maxBackupSize)
	}
	return data, nil
}

// NewS3Client creates a real AWS S3 client using the default credential
// chain. If endpoint is non-empty, path-style addressing is enabled (for
// MinIO, LocalStack, etc.).
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}

	var opts []func(*s3.Options)
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, opts...), nil
}

func strPtr(s string) *string { return &s }
