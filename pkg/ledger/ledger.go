// Package ledger records completed conversions keyed by original file name.
//
// Presence of a record is the only "already processed" signal. Records are
// created once and never updated; the TTL field is advisory and left to an
// external retention sweep.
package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when no record exists for the key.
	ErrNotFound = errors.New("ledger record not found")
	// ErrAlreadyExists is returned by Create when the key already has a record.
	ErrAlreadyExists = errors.New("ledger record already exists")
)

// Record is one completed conversion.
type Record struct {
	OriginalFile  string    `firestore:"original_file" json:"original_file"`
	ConvertedFile string    `firestore:"converted_file" json:"converted_file"`
	DownloadURL   string    `firestore:"download_url" json:"download_url"`
	SourceName    string    `firestore:"source_name,omitempty" json:"source_name,omitempty"`
	TTL           time.Time `firestore:"ttl" json:"ttl"`
}

// Store is the keyed ledger contract.
type Store interface {
	// Get returns the record for originalFile or ErrNotFound.
	Get(ctx context.Context, originalFile string) (*Record, error)
	// Create writes rec keyed by rec.OriginalFile if no record exists yet,
	// otherwise it returns ErrAlreadyExists and leaves the stored record alone.
	Create(ctx context.Context, rec *Record) error
	Close() error
}
