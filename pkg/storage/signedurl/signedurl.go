// Package signedurl issues short-lived, method-scoped object URLs.
package signedurl

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Method is the HTTP method a URL is scoped to.
type Method string

const (
	Read  Method = http.MethodGet
	Write Method = http.MethodPut
)

// Request describes one URL to mint. ContentType is bound into Write URLs
// only; uploads must send the same Content-Type header.
type Request struct {
	Bucket      string
	Object      string
	Method      Method
	TTL         time.Duration
	ContentType string
}

// Signer mints signed URLs. Implementations must never cache results:
// every call produces a URL whose lifetime starts now.
type Signer interface {
	Sign(ctx context.Context, req Request) (string, error)
}

func (r Request) validate() error {
	if r.Bucket == "" {
		return errors.New("bucket is required")
	}
	if r.Object == "" {
		return errors.New("object name is required")
	}
	if r.TTL <= 0 {
		return errors.New("ttl must be positive")
	}
	if r.Method != Read && r.Method != Write {
		return errors.New("method must be GET or PUT")
	}
	return nil
}
