package conversion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/your-org/cmykrelay/pkg/ledger"
	"github.com/your-org/cmykrelay/pkg/storage/objectstore"
	"github.com/your-org/cmykrelay/pkg/storage/signedurl"
)

const (
	testInputBucket  = "in-bucket"
	testOutputBucket = "out-bucket"
)

// countingStore wraps the filesystem store and counts calls.
type countingStore struct {
	objectstore.Client
	mu          sync.Mutex
	downloads   int
	uploads     int
	uploadErr   error
	downloadErr error
}

func (s *countingStore) Download(ctx context.Context, bucket, key, dir string) (string, error) {
	s.mu.Lock()
	s.downloads++
	s.mu.Unlock()
	if s.downloadErr != nil {
		return "", s.downloadErr
	}
	return s.Client.Download(ctx, bucket, key, dir)
}

func (s *countingStore) Upload(ctx context.Context, bucket, key, sourcePath, contentType string) error {
	s.mu.Lock()
	s.uploads++
	s.mu.Unlock()
	if s.uploadErr != nil {
		return s.uploadErr
	}
	return s.Client.Upload(ctx, bucket, key, sourcePath, contentType)
}

// countingLedger wraps the in-memory ledger and counts calls.
type countingLedger struct {
	*ledger.Memory
	mu        sync.Mutex
	gets      int
	creates   int
	getErr    error
	createErr error
}

func (l *countingLedger) Get(ctx context.Context, key string) (*ledger.Record, error) {
	l.mu.Lock()
	l.gets++
	l.mu.Unlock()
	if l.getErr != nil {
		return nil, l.getErr
	}
	return l.Memory.Get(ctx, key)
}

func (l *countingLedger) Create(ctx context.Context, rec *ledger.Record) error {
	l.mu.Lock()
	l.creates++
	l.mu.Unlock()
	if l.createErr != nil {
		return l.createErr
	}
	return l.Memory.Create(ctx, rec)
}

type fakeSigner struct {
	mu       sync.Mutex
	calls    int
	requests []signedurl.Request
	err      error
}

func (s *fakeSigner) Sign(ctx context.Context, req signedurl.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("https://signed.example/%s/%s?method=%s&ttl=%d&n=%d",
		req.Bucket, req.Object, req.Method, int(req.TTL.Seconds()), s.calls), nil
}

// fakeConverter copies the input to the output, or fails.
type fakeConverter struct {
	calls int
	err   error
}

func (c *fakeConverter) Convert(ctx context.Context, inputPath, outputPath string) error {
	c.calls++
	if c.err != nil {
		return c.err
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, append([]byte("CMYK:"), data...), 0o644)
}

type publishedEvent struct {
	key     string
	payload any
	headers map[string]string
}

type fakePublisher struct {
	events []publishedEvent
	err    error
	closed bool
}

func (p *fakePublisher) PublishJSON(ctx context.Context, key string, payload any, headers map[string]string) error {
	p.events = append(p.events, publishedEvent{key: key, payload: payload, headers: headers})
	return p.err
}

func (p *fakePublisher) Close(ctx context.Context) error {
	p.closed = true
	return nil
}

type fixture struct {
	service   *Service
	store     *countingStore
	ledger    *countingLedger
	signer    *fakeSigner
	converter *fakeConverter
	events    *fakePublisher
	storeRoot string
	workDir   string
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		storeRoot: t.TempDir(),
		workDir:   t.TempDir(),
		ledger:    &countingLedger{Memory: ledger.NewMemory()},
		signer:    &fakeSigner{},
		converter: &fakeConverter{},
		events:    &fakePublisher{},
		now:       time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC),
	}
	f.store = &countingStore{Client: objectstore.NewFile(f.storeRoot)}

	svc, err := NewService(Params{
		Store:        f.store,
		Signer:       f.signer,
		Ledger:       f.ledger,
		Converter:    f.converter,
		Events:       f.events,
		InputBucket:  testInputBucket,
		OutputBucket: testOutputBucket,
		WorkDir:      f.workDir,
		Clock:        func() time.Time { return f.now },
		NewToken:     func() string { return "a1b2c3d4" },
	})
	require.NoError(t, err)
	f.service = svc
	return f
}

// putInput places an object in the input bucket.
func (f *fixture) putInput(t *testing.T, name, content string) {
	t.Helper()
	src, err := os.CreateTemp(t.TempDir(), "src-*")
	require.NoError(t, err)
	_, err = src.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, src.Close())
	require.NoError(t, objectstore.NewFile(f.storeRoot).Upload(context.Background(), testInputBucket, name, src.Name(), PDFContentType))
}

func (f *fixture) outputContent(t *testing.T, name string) string {
	t.Helper()
	path, err := objectstore.NewFile(f.storeRoot).Download(context.Background(), testOutputBucket, name, t.TempDir())
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) scratchEntries(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.workDir)
	require.NoError(t, err)
	return len(entries)
}

var errBoom = errors.New("boom")
