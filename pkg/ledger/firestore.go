package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig selects the Firestore database and collection.
type FirestoreConfig struct {
	ProjectID       string
	DatabaseID      string
	Collection      string
	CredentialsFile string
}

// Firestore keeps one document per original file in a single collection.
type Firestore struct {
	client     *firestore.Client
	collection string
}

// NewFirestore connects to Firestore using ambient credentials unless a
// credentials file is given.
func NewFirestore(ctx context.Context, cfg FirestoreConfig) (*Firestore, error) {
	if cfg.Collection == "" {
		return nil, errors.New("firestore ledger: collection is required")
	}
	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	databaseID := cfg.DatabaseID
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firestore client: %w", err)
	}
	return &Firestore{client: client, collection: cfg.Collection}, nil
}

func (f *Firestore) doc(originalFile string) *firestore.DocumentRef {
	return f.client.Collection(f.collection).Doc(documentID(originalFile))
}

func (f *Firestore) Get(ctx context.Context, originalFile string) (*Record, error) {
	snap, err := f.doc(originalFile).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ledger document: %w", err)
	}
	var rec Record
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("decode ledger document: %w", err)
	}
	return &rec, nil
}

func (f *Firestore) Create(ctx context.Context, rec *Record) error {
	if rec == nil || rec.OriginalFile == "" {
		return errors.New("ledger: record key is required")
	}
	if _, err := f.doc(rec.OriginalFile).Create(ctx, rec); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create ledger document: %w", err)
	}
	return nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

// documentID escapes names so object prefixes ("a/b.pdf") stay a single
// document id instead of a subcollection path.
func documentID(originalFile string) string {
	return url.PathEscape(originalFile)
}
