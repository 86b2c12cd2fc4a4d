package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/cmykrelay/internal/conversion"
	"github.com/your-org/cmykrelay/internal/subscriber"
	"github.com/your-org/cmykrelay/pkg/config"
	"github.com/your-org/cmykrelay/pkg/converter"
	"github.com/your-org/cmykrelay/pkg/kafka"
	"github.com/your-org/cmykrelay/pkg/ledger"
	"github.com/your-org/cmykrelay/pkg/logger"
	"github.com/your-org/cmykrelay/pkg/storage/objectstore"
	"github.com/your-org/cmykrelay/pkg/storage/signedurl"
	"github.com/your-org/cmykrelay/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logr, err := logger.New(cfg.App.LogLevel, cfg.App.Name)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
		Attributes:     tracing.ParseAttributes(cfg.Tracing.ResourceAttr),
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	store, signer, err := buildStorage(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("init storage", zap.Error(err))
	}

	records, err := buildLedger(ctx, cfg.Ledger)
	if err != nil {
		logr.Fatal("init ledger", zap.Error(err))
	}

	var events conversion.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		events = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.CompletionTopic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
			RequiredAcks: kafkago.RequireAll,
			MaxAttempts:  cfg.Kafka.Retries,
		})
	}

	service, err := conversion.NewService(conversion.Params{
		Store:        store,
		Signer:       signer,
		Ledger:       records,
		Converter:    converter.NewGhostscript(cfg.Converter.Binary, cfg.Converter.Timeout, logr),
		Events:       events,
		Logger:       logr,
		InputBucket:  cfg.Storage.InputBucket,
		OutputBucket: cfg.Storage.OutputBucket,
		WorkDir:      cfg.Converter.WorkDir,
		RecordTTL:    cfg.Ledger.RecordTTL,
		DownloadTTL:  cfg.Signing.DownloadTTL,
		StatusTTL:    cfg.Signing.StatusTTL,
		UploadTTL:    cfg.Signing.UploadTTL,
	})
	if err != nil {
		logr.Fatal("init service", zap.Error(err))
	}

	handler := conversion.NewHTTPHandler(service, logr, conversion.HTTPOptions{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logr.Info("relay starting",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("input_bucket", cfg.Storage.InputBucket),
			zap.String("output_bucket", cfg.Storage.OutputBucket),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.PubSub.SubscriptionID != "" {
		runner, err := subscriber.New(gctx, subscriber.Params{
			ProjectID:      cfg.PubSub.ProjectID,
			SubscriptionID: cfg.PubSub.SubscriptionID,
			MaxOutstanding: cfg.PubSub.MaxOutstanding,
			Ingester:       service,
			Logger:         logr,
		})
		if err != nil {
			logr.Fatal("init subscriber", zap.Error(err))
		}
		g.Go(func() error { return runner.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}
		if err := service.Close(shutdownCtx); err != nil {
			logr.Error("service shutdown failed", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logr.Fatal("relay stopped", zap.Error(err))
	}
	logr.Info("relay stopped")
}

// buildStorage returns the transfer client and the URL signer for the
// configured provider. MinIO and S3 share one client for both roles; GCS
// signs with the dedicated key file.
func buildStorage(ctx context.Context, cfg *config.Config, logr *zap.Logger) (objectstore.Client, signedurl.Signer, error) {
	switch cfg.Storage.Provider {
	case "minio", "s3":
		cl, err := objectstore.DialMinio(objectstore.Config{
			Endpoint:  cfg.Storage.Endpoint,
			Region:    cfg.Storage.Region,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		return objectstore.NewMinio(cl), signedurl.NewMinioSigner(cl), nil
	}

	signer, err := signedurl.NewGCSSignerFromFile(cfg.Signing.KeyPath, signedurl.WithLogger(logr))
	if err != nil {
		return nil, nil, err
	}
	store, err := objectstore.New(ctx, objectstore.Config{
		Provider:        cfg.Storage.Provider,
		FileRoot:        cfg.Storage.FileRoot,
		CredentialsFile: cfg.Storage.CredentialsFile,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, signer, nil
}

func buildLedger(ctx context.Context, cfg config.LedgerConfig) (ledger.Store, error) {
	switch cfg.Backend {
	case "firestore", "":
		return ledger.NewFirestore(ctx, ledger.FirestoreConfig{
			ProjectID:       cfg.ProjectID,
			DatabaseID:      cfg.DatabaseID,
			Collection:      cfg.Collection,
			CredentialsFile: cfg.CredentialsFile,
		})
	case "postgres":
		return ledger.NewPostgres(ctx, cfg.PostgresDSN, cfg.Collection)
	case "memory":
		return ledger.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", cfg.Backend)
	}
}
