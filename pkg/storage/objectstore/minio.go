package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DialMinio builds the raw S3-compatible client shared by transfer and signing.
func DialMinio(cfg Config) (*minio.Client, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	cl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return cl, nil
}

type minioClient struct {
	client *minio.Client
}

// NewMinio wraps an S3-compatible client.
func NewMinio(cl *minio.Client) Client {
	return &minioClient{client: cl}
}

func (m *minioClient) Download(ctx context.Context, bucket, key, dir string) (string, error) {
	ctx, span := tracer.Start(ctx, "objectstore.minioDownload",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()

	if _, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		if isMinioNotFound(err) {
			return "", ErrNotFound
		}
		span.RecordError(err)
		return "", fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}

	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	defer func() { _ = obj.Close() }()

	dst := localPath(dir, key)
	if _, err := writeLocal(dst, obj); err != nil {
		if isMinioNotFound(err) {
			return "", ErrNotFound
		}
		span.RecordError(err)
		return "", err
	}
	return dst, nil
}

func (m *minioClient) Upload(ctx context.Context, bucket, key, sourcePath, contentType string) error {
	ctx, span := tracer.Start(ctx, "objectstore.minioUpload",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()

	opts := minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"writer": "cmykrelay"},
	}
	if _, err := m.client.FPutObject(ctx, bucket, key, sourcePath, opts); err != nil {
		span.RecordError(err)
		return fmt.Errorf("upload object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (m *minioClient) Close() error {
	return nil
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
