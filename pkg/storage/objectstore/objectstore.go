package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
)

// ErrNotFound is returned by Download when the object does not exist.
var ErrNotFound = errors.New("object not found")

var tracer = otel.Tracer("github.com/your-org/cmykrelay/pkg/storage/objectstore")

// Config contains the information required to talk to an object store.
type Config struct {
	Provider        string
	Endpoint        string
	Region          string
	AccessKey       string
	SecretKey       string
	UseSSL          bool
	FileRoot        string
	CredentialsFile string
}

// Client represents the transfer capabilities the relay expects.
type Client interface {
	// Download copies bucket/key into dir and returns the local path. The
	// object's existence is checked before any bytes move; a missing object
	// yields ErrNotFound.
	Download(ctx context.Context, bucket, key, dir string) (string, error)
	// Upload writes the local file at sourcePath to bucket/key.
	Upload(ctx context.Context, bucket, key, sourcePath, contentType string) error
	Close() error
}

// New creates an object store client based on the given configuration.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Provider {
	case "gcs", "":
		return NewGCS(ctx, cfg.CredentialsFile)
	case "minio", "s3":
		cl, err := DialMinio(cfg)
		if err != nil {
			return nil, err
		}
		return NewMinio(cl), nil
	case "file":
		return NewFile(cfg.FileRoot), nil
	default:
		return nil, fmt.Errorf("unsupported object store provider: %s", cfg.Provider)
	}
}

// localPath derives the scratch path for key inside dir. Only the base name
// is kept so object prefixes never escape dir.
func localPath(dir, key string) string {
	return filepath.Join(dir, filepath.Base(filepath.FromSlash(key)))
}

func writeLocal(dst string, src io.Reader) (int64, error) {
	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create local file: %w", err)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return 0, fmt.Errorf("copy object content: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("close local file: %w", err)
	}
	return n, nil
}
