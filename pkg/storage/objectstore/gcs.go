package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
)

type gcsClient struct {
	client *storage.Client
}

// NewGCS builds a Google Cloud Storage client. An empty credentialsFile
// falls back to application default credentials.
func NewGCS(ctx context.Context, credentialsFile string) (Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	cl, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init gcs client: %w", err)
	}
	return &gcsClient{client: cl}, nil
}

func (c *gcsClient) Download(ctx context.Context, bucket, key, dir string) (string, error) {
	ctx, span := tracer.Start(ctx, "objectstore.gcsDownload",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()

	obj := c.client.Bucket(bucket).Object(key)
	if _, err := obj.Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", ErrNotFound
		}
		span.RecordError(err)
		return "", fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}

	reader, err := obj.NewReader(ctx)
	if err != nil {
		// Deleted between the existence check and the read.
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", ErrNotFound
		}
		span.RecordError(err)
		return "", fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	defer func() { _ = reader.Close() }()

	dst := localPath(dir, key)
	size, err := writeLocal(dst, reader)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.Int64("size_bytes", size))
	return dst, nil
}

func (c *gcsClient) Upload(ctx context.Context, bucket, key, sourcePath, contentType string) error {
	ctx, span := tracer.Start(ctx, "objectstore.gcsUpload",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()

	file, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open source file %s: %w", sourcePath, err)
	}
	defer func() { _ = file.Close() }()

	writer := c.client.Bucket(bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	writer.Metadata = map[string]string{
		"writer": "cmykrelay",
	}

	if _, err := io.Copy(writer, file); err != nil {
		_ = writer.Close()
		span.RecordError(err)
		return fmt.Errorf("upload object %s/%s: %w", bucket, key, err)
	}
	if err := writer.Close(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("close writer for %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (c *gcsClient) Close() error {
	return c.client.Close()
}
