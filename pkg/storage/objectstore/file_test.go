package objectstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := NewFile(t.TempDir())

	src := filepath.Join(t.TempDir(), "report-cmyk.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.7"), 0o644))
	require.NoError(t, client.Upload(ctx, "out", "report-cmyk.pdf", src, "application/pdf"))

	scratch := t.TempDir()
	got, err := client.Download(ctx, "out", "report-cmyk.pdf", scratch)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(scratch, "report-cmyk.pdf"), got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))
}

func TestFileClientMissingObject(t *testing.T) {
	client := NewFile(t.TempDir())

	_, err := client.Download(context.Background(), "in", "gone.pdf", t.TempDir())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileClientNestedKeyStaysInScratchDir(t *testing.T) {
	ctx := context.Background()
	client := NewFile(t.TempDir())

	src := filepath.Join(t.TempDir(), "a.pdf")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	require.NoError(t, client.Upload(ctx, "in", "2025/06/a.pdf", src, "application/pdf"))

	scratch := t.TempDir()
	got, err := client.Download(ctx, "in", "2025/06/a.pdf", scratch)
	require.NoError(t, err)
	assert.Equal(t, scratch, filepath.Dir(got))
}

func TestNewProviders(t *testing.T) {
	client, err := New(context.Background(), Config{Provider: "file", FileRoot: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = New(context.Background(), Config{Provider: "ftp"})
	require.Error(t, err)
}

func TestIsMinioNotFound(t *testing.T) {
	assert.True(t, isMinioNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isMinioNotFound(minio.ErrorResponse{StatusCode: 404}))
	assert.False(t, isMinioNotFound(minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}))
	assert.False(t, isMinioNotFound(errors.New("connection reset")))
}
