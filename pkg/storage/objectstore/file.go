package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// fileClient stores objects on the local filesystem as root/bucket/key.
// Used for local development and tests.
type fileClient struct {
	root string
}

// NewFile returns a client rooted at root.
func NewFile(root string) Client {
	return &fileClient{root: root}
}

func (c *fileClient) path(bucket, key string) string {
	return filepath.Join(c.root, bucket, filepath.FromSlash(key))
}

func (c *fileClient) Download(ctx context.Context, bucket, key, dir string) (string, error) {
	src := c.path(bucket, key)
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}

	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("open %s/%s: %w", bucket, key, err)
	}
	defer func() { _ = f.Close() }()

	dst := localPath(dir, key)
	if _, err := writeLocal(dst, f); err != nil {
		return "", err
	}
	return dst, nil
}

func (c *fileClient) Upload(ctx context.Context, bucket, key, sourcePath, contentType string) error {
	dst := c.path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create bucket dir: %w", err)
	}
	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open source file %s: %w", sourcePath, err)
	}
	defer func() { _ = src.Close() }()

	if _, err := writeLocal(dst, src); err != nil {
		return fmt.Errorf("upload object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (c *fileClient) Close() error {
	return nil
}
