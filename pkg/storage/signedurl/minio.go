package signedurl

import (
	"context"
	"fmt"
	"net/http"

	"github.com/minio/minio-go/v7"
)

// MinioSigner presigns URLs against an S3-compatible endpoint.
type MinioSigner struct {
	client *minio.Client
}

// NewMinioSigner wraps an existing client; its static credentials sign.
func NewMinioSigner(client *minio.Client) *MinioSigner {
	return &MinioSigner{client: client}
}

func (s *MinioSigner) Sign(ctx context.Context, req Request) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	if req.Method == Read {
		u, err := s.client.PresignedGetObject(ctx, req.Bucket, req.Object, req.TTL, nil)
		if err != nil {
			return "", fmt.Errorf("presign get: %w", err)
		}
		return u.String(), nil
	}

	headers := http.Header{}
	if req.ContentType != "" {
		headers.Set("Content-Type", req.ContentType)
	}
	u, err := s.client.PresignHeader(ctx, http.MethodPut, req.Bucket, req.Object, req.TTL, nil, headers)
	if err != nil {
		return "", fmt.Errorf("presign put: %w", err)
	}
	return u.String(), nil
}
