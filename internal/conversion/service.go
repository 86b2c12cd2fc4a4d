package conversion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/your-org/cmykrelay/pkg/converter"
	"github.com/your-org/cmykrelay/pkg/ledger"
	"github.com/your-org/cmykrelay/pkg/storage/objectstore"
	"github.com/your-org/cmykrelay/pkg/storage/signedurl"
)

// Outcome is the non-error result status of an ingest.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped"
)

// Skip reasons.
const (
	ReasonAlreadyConverted = "already converted"
	ReasonAlreadyProcessed = "already processed"
	ReasonFileNotFound     = "file not found"
)

const completionEventType = "conversion.completed"

// EventPublisher emits completion events. Nil disables them.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, payload any, headers map[string]string) error
	Close(ctx context.Context) error
}

// Service runs the ingest pipeline and answers upload and status requests.
type Service struct {
	store     objectstore.Client
	signer    signedurl.Signer
	ledger    ledger.Store
	converter converter.Converter
	events    EventPublisher
	logger    *zap.Logger
	tracer    trace.Tracer

	inputBucket  string
	outputBucket string
	workDir      string

	recordTTL   time.Duration
	downloadTTL time.Duration
	statusTTL   time.Duration
	uploadTTL   time.Duration

	now      func() time.Time
	newToken func() string
}

type Params struct {
	Store     objectstore.Client
	Signer    signedurl.Signer
	Ledger    ledger.Store
	Converter converter.Converter
	Events    EventPublisher
	Logger    *zap.Logger

	InputBucket  string
	OutputBucket string
	// WorkDir holds per-request scratch directories; empty means os.TempDir.
	WorkDir string

	RecordTTL   time.Duration
	DownloadTTL time.Duration
	StatusTTL   time.Duration
	UploadTTL   time.Duration

	Clock    func() time.Time
	NewToken func() string
}

// IngestResult is returned for success and skip outcomes.
type IngestResult struct {
	Status        Outcome
	Reason        string
	ConvertedFile string
	DownloadURL   string
}

// UploadIntent tells a client where to PUT a new input.
type UploadIntent struct {
	UploadURL    string
	FileName     string
	OriginalName string
	ExpiresIn    time.Duration
}

// Status is a completed conversion with a freshly minted download URL.
type Status struct {
	ConvertedFile string
	DownloadURL   string
	OriginalName  string
}

// NewService constructs a Service from explicitly injected collaborators.
func NewService(p Params) (*Service, error) {
	if p.Store == nil {
		return nil, errors.New("conversion: object store is required")
	}
	if p.Signer == nil {
		return nil, errors.New("conversion: signer is required")
	}
	if p.Ledger == nil {
		return nil, errors.New("conversion: ledger is required")
	}
	if p.Converter == nil {
		return nil, errors.New("conversion: converter is required")
	}
	if p.InputBucket == "" || p.OutputBucket == "" {
		return nil, errors.New("conversion: input and output buckets are required")
	}

	s := &Service{
		store:        p.Store,
		signer:       p.Signer,
		ledger:       p.Ledger,
		converter:    p.Converter,
		events:       p.Events,
		logger:       p.Logger,
		tracer:       otel.Tracer("github.com/your-org/cmykrelay/internal/conversion"),
		inputBucket:  p.InputBucket,
		outputBucket: p.OutputBucket,
		workDir:      p.WorkDir,
		recordTTL:    durationOr(p.RecordTTL, 7*24*time.Hour),
		downloadTTL:  durationOr(p.DownloadTTL, 15*time.Minute),
		statusTTL:    durationOr(p.StatusTTL, 10*time.Minute),
		uploadTTL:    durationOr(p.UploadTTL, 10*time.Minute),
		now:          p.Clock,
		newToken:     p.NewToken,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newToken == nil {
		s.newToken = func() string { return uuid.NewString()[:tokenLength] }
	}
	return s, nil
}

// Ingest converts fileName exactly once. All guards run before any transfer
// or conversion work, and the ledger record is written only after the output
// is uploaded and its URL minted, so a failed run leaves nothing behind and
// can be retried whole.
func (s *Service) Ingest(ctx context.Context, fileName string) (*IngestResult, error) {
	ctx, span := s.tracer.Start(ctx, "conversion.Ingest",
		trace.WithAttributes(attribute.String("file_name", fileName)))
	defer span.End()

	log := s.logger.With(zap.String("file_name", fileName))

	if fileName == "" {
		return nil, badRequest(detailMissingName)
	}
	if IsConvertedName(fileName) {
		log.Info("skipping file that is already converted output")
		return s.skipped(ctx, ReasonAlreadyConverted), nil
	}
	if !HasInputExtension(fileName) {
		return nil, badRequest("Only PDF files are supported")
	}

	_, err := s.ledger.Get(ctx, fileName)
	switch {
	case err == nil:
		log.Info("skipping file that is already processed")
		return s.skipped(ctx, ReasonAlreadyProcessed), nil
	case !errors.Is(err, ledger.ErrNotFound):
		span.RecordError(err)
		return nil, s.failed(ctx, "ledger lookup", err)
	}

	scratch, err := os.MkdirTemp(s.workDir, "relay-*")
	if err != nil {
		return nil, s.failed(ctx, "create scratch dir", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.Warn("remove scratch dir", zap.String("dir", scratch), zap.Error(err))
		}
	}()

	inputPath, err := s.store.Download(ctx, s.inputBucket, fileName, scratch)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			log.Warn("input object missing, skipping")
			return s.skipped(ctx, ReasonFileNotFound), nil
		}
		span.RecordError(err)
		return nil, s.failed(ctx, "download input", err)
	}

	convertedFile := ConvertedName(fileName)
	outputPath := filepath.Join(scratch, path.Base(convertedFile))
	if err := s.converter.Convert(ctx, inputPath, outputPath); err != nil {
		span.RecordError(err)
		recordOutcome(ctx, "error", KindConversionFailed.String())
		return nil, conversionFailed(err)
	}

	return s.publish(ctx, log, fileName, convertedFile, outputPath)
}

func (s *Service) publish(ctx context.Context, log *zap.Logger, fileName, convertedFile, outputPath string) (*IngestResult, error) {
	if err := s.store.Upload(ctx, s.outputBucket, convertedFile, outputPath, PDFContentType); err != nil {
		return nil, s.failed(ctx, "upload converted file", err)
	}

	downloadURL, err := s.signer.Sign(ctx, signedurl.Request{
		Bucket: s.outputBucket,
		Object: convertedFile,
		Method: signedurl.Read,
		TTL:    s.downloadTTL,
	})
	if err != nil {
		return nil, s.failed(ctx, "sign download url", err)
	}

	now := s.now().UTC()
	rec := &ledger.Record{
		OriginalFile:  fileName,
		ConvertedFile: convertedFile,
		DownloadURL:   downloadURL,
		TTL:           now.Add(s.recordTTL),
	}
	if source, ok := SourceName(fileName); ok {
		rec.SourceName = source
	}

	switch err := s.ledger.Create(ctx, rec); {
	case err == nil:
	case errors.Is(err, ledger.ErrAlreadyExists):
		// A concurrent delivery finished first; its output is identical.
		log.Warn("ledger record written by concurrent delivery")
	default:
		return nil, s.failed(ctx, "write ledger record", err)
	}

	s.publishCompletion(ctx, log, rec, now)

	log.Info("conversion complete", zap.String("converted_file", convertedFile))
	recordOutcome(ctx, string(OutcomeSuccess), "")
	return &IngestResult{
		Status:        OutcomeSuccess,
		ConvertedFile: convertedFile,
		DownloadURL:   downloadURL,
	}, nil
}

func (s *Service) publishCompletion(ctx context.Context, log *zap.Logger, rec *ledger.Record, at time.Time) {
	if s.events == nil {
		return
	}
	event := CompletionEvent{
		ID:            uuid.NewString(),
		OriginalFile:  rec.OriginalFile,
		ConvertedFile: rec.ConvertedFile,
		SourceName:    rec.SourceName,
		Bucket:        s.outputBucket,
		CompletedAt:   at,
	}
	headers := map[string]string{
		"event_id":   event.ID,
		"event_type": completionEventType,
	}
	if err := s.events.PublishJSON(ctx, rec.OriginalFile, event, headers); err != nil {
		log.Warn("publish completion event", zap.Error(err))
	}
}

// failed records an internal ingest failure and returns it classified.
func (s *Service) failed(ctx context.Context, detail string, err error) error {
	recordOutcome(ctx, "error", KindInternal.String())
	return internal(detail, err)
}

func (s *Service) skipped(ctx context.Context, reason string) *IngestResult {
	recordOutcome(ctx, string(OutcomeSkipped), reason)
	return &IngestResult{Status: OutcomeSkipped, Reason: reason}
}

// IssueUpload mints a write-only URL for a new input under a generated
// storage name. The storage name is what later events carry and therefore
// the key clients poll Status with.
func (s *Service) IssueUpload(ctx context.Context, originalName string) (*UploadIntent, error) {
	if originalName == "" || !HasInputExtension(originalName) {
		return nil, badRequest("Invalid or missing 'file_name'. Must be a .pdf")
	}
	if IsConvertedName(originalName) {
		return nil, badRequest(fmt.Sprintf("Invalid 'file_name'. Names containing '%s.' are reserved for converted output", ConvertedMarker))
	}

	storageName := StorageName(s.newToken(), originalName)
	uploadURL, err := s.signer.Sign(ctx, signedurl.Request{
		Bucket:      s.inputBucket,
		Object:      storageName,
		Method:      signedurl.Write,
		TTL:         s.uploadTTL,
		ContentType: PDFContentType,
	})
	if err != nil {
		s.logger.Error("sign upload url", zap.String("file_name", storageName), zap.Error(err))
		return nil, internal("sign upload url", err)
	}

	return &UploadIntent{
		UploadURL:    uploadURL,
		FileName:     storageName,
		OriginalName: originalName,
		ExpiresIn:    s.uploadTTL,
	}, nil
}

// Status looks up a completed conversion and mints a fresh download URL.
// The URL stored in the ledger is never returned; it may have expired.
func (s *Service) Status(ctx context.Context, fileName string) (*Status, error) {
	if fileName == "" {
		return nil, badRequest("Missing file name")
	}

	rec, err := s.ledger.Get(ctx, fileName)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, notFound("File not processed yet or does not exist.")
		}
		return nil, internal("ledger lookup", err)
	}
	if rec.ConvertedFile == "" {
		return nil, internal("Missing converted file name in ledger record", nil)
	}

	downloadURL, err := s.signer.Sign(ctx, signedurl.Request{
		Bucket: s.outputBucket,
		Object: rec.ConvertedFile,
		Method: signedurl.Read,
		TTL:    s.statusTTL,
	})
	if err != nil {
		return nil, internal("sign download url", err)
	}

	return &Status{
		ConvertedFile: rec.ConvertedFile,
		DownloadURL:   downloadURL,
		OriginalName:  rec.SourceName,
	}, nil
}

// Close releases the collaborators owned by the service.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if s.events != nil {
		errs = append(errs, s.events.Close(ctx))
	}
	errs = append(errs, s.store.Close(), s.ledger.Close())
	return errors.Join(errs...)
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
