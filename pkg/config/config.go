package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the full runtime configuration for the relay service.
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Storage   StorageConfig
	Signing   SigningConfig
	Ledger    LedgerConfig
	Converter ConverterConfig
	PubSub    PubSubConfig
	Kafka     KafkaConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"pdf-cmyk-relay"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
}

type HTTPConfig struct {
	Addr           string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10m"`
	IdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"10m"`
	CORSOrigins    []string      `env:"HTTP_CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

type StorageConfig struct {
	Provider        string `env:"STORAGE_PROVIDER" envDefault:"gcs"`
	InputBucket     string `env:"BUCKET_INPUT" envDefault:"pdf-input-bucket-cmyk-convertor"`
	OutputBucket    string `env:"BUCKET_OUTPUT" envDefault:"pdf-output-bucket-cmyk-convertor"`
	Endpoint        string `env:"STORAGE_ENDPOINT" envDefault:"localhost:9000"`
	Region          string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	AccessKey       string `env:"STORAGE_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey       string `env:"STORAGE_SECRET_KEY" envDefault:"minioadmin"`
	UseSSL          bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
	FileRoot        string `env:"STORAGE_FILE_ROOT" envDefault:"/var/lib/relay"`
	// CredentialsFile overrides ambient credentials for the GCS client.
	CredentialsFile string `env:"STORAGE_CREDENTIALS_FILE"`
}

// SigningConfig holds the dedicated URL-signing credential. It is kept apart
// from the ambient service identity, which may not be able to sign.
type SigningConfig struct {
	KeyPath     string        `env:"SIGNED_URL_KEY" envDefault:"key.json"`
	DownloadTTL time.Duration `env:"SIGNED_URL_DOWNLOAD_TTL" envDefault:"15m"`
	StatusTTL   time.Duration `env:"SIGNED_URL_STATUS_TTL" envDefault:"10m"`
	UploadTTL   time.Duration `env:"SIGNED_URL_UPLOAD_TTL" envDefault:"10m"`
}

type LedgerConfig struct {
	Backend         string        `env:"LEDGER_BACKEND" envDefault:"firestore"`
	ProjectID       string        `env:"GCP_PROJECT_ID"`
	DatabaseID      string        `env:"FIRESTORE_DATABASE" envDefault:"(default)"`
	Collection      string        `env:"LEDGER_COLLECTION" envDefault:"processed_files"`
	PostgresDSN     string        `env:"LEDGER_POSTGRES_DSN"`
	RecordTTL       time.Duration `env:"LEDGER_RECORD_TTL" envDefault:"168h"`
	// CredentialsFile overrides ambient credentials for Firestore.
	CredentialsFile string        `env:"LEDGER_CREDENTIALS_FILE"`
}

type ConverterConfig struct {
	Binary  string        `env:"CONVERTER_BINARY" envDefault:"gs"`
	Timeout time.Duration `env:"CONVERTER_TIMEOUT" envDefault:"5m"`
	WorkDir string        `env:"CONVERTER_WORK_DIR"`
}

type PubSubConfig struct {
	ProjectID      string `env:"GCP_PROJECT_ID"`
	SubscriptionID string `env:"PUBSUB_SUBSCRIPTION"`
	MaxOutstanding int    `env:"PUBSUB_MAX_OUTSTANDING" envDefault:"4"`
}

type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:","`
	CompletionTopic  string        `env:"KAFKA_COMPLETION_TOPIC" envDefault:"pdfrelay.conversions"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchSize        int           `env:"KAFKA_BATCH_SIZE" envDefault:"1"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"50ms"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=pdfrelay"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
