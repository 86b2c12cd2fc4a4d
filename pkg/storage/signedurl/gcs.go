package signedurl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
)

// GCSSigner produces V4 signed URLs with a dedicated service-account key.
type GCSSigner struct {
	accessID   string
	privateKey []byte
	now        func() time.Time
	logger     *zap.Logger
}

// Option customises a GCSSigner.
type Option func(*GCSSigner)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *GCSSigner) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithLogger attaches a logger for signing failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *GCSSigner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewGCSSignerFromFile loads the signing key from a service-account JSON file.
func NewGCSSignerFromFile(path string, opts ...Option) (*GCSSigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key %s: %w", path, err)
	}
	return NewGCSSigner(data, opts...)
}

// NewGCSSigner parses a service-account JSON key.
func NewGCSSigner(keyJSON []byte, opts ...Option) (*GCSSigner, error) {
	jwtCfg, err := google.JWTConfigFromJSON(keyJSON)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	if jwtCfg.Email == "" {
		return nil, errors.New("signing key: client_email is empty")
	}
	if len(jwtCfg.PrivateKey) == 0 {
		return nil, errors.New("signing key: private_key is empty")
	}

	s := &GCSSigner{
		accessID:   jwtCfg.Email,
		privateKey: jwtCfg.PrivateKey,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessID returns the service account that signs URLs.
func (s *GCSSigner) AccessID() string {
	return s.accessID
}

func (s *GCSSigner) Sign(ctx context.Context, req Request) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         string(req.Method),
		Expires:        s.now().Add(req.TTL),
		GoogleAccessID: s.accessID,
		PrivateKey:     s.privateKey,
	}
	if req.Method == Write && req.ContentType != "" {
		opts.ContentType = req.ContentType
	}

	url, err := storage.SignedURL(req.Bucket, req.Object, opts)
	if err != nil {
		s.logger.Error("generate signed url failed",
			zap.String("bucket", req.Bucket),
			zap.String("object", req.Object),
			zap.String("method", string(req.Method)),
			zap.Error(err),
		)
		return "", fmt.Errorf("signed url: %w", err)
	}
	return url, nil
}
