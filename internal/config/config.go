package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	RecordBackendPostgREST = "postgrest"
	RecordBackendPostgres  = "postgres"
	RecordBackendMemory    = "memory"

	BlobBackendSupabase = "supabase"
	BlobBackendS3       = "s3"
	BlobBackendMinio    = "minio"
)

type Config struct {
	// Server
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`
	PublicURL   string `env:"PUBLIC_URL" env-default:"http://localhost:3000"`

	// Supabase
	SupabaseURL            string `env:"SUPABASE_URL"`
	SupabaseAnonKey        string `env:"SUPABASE_ANON_KEY"`
	SupabaseServiceRoleKey string `env:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseJWTSecret      string `env:"SUPABASE_JWT_SECRET"`
	JWTAudience            string `env:"JWT_AUDIENCE" env-default:"authenticated"`

	// Storage
	InputBucket    string `env:"INPUT_BUCKET" env-default:"input-images"`
	OutputBucket   string `env:"OUTPUT_BUCKET" env-default:"output-images"`
	RecordBackend  string `env:"RECORD_BACKEND" env-default:"postgrest"`
	DatabaseURL    string `env:"DATABASE_URL"`
	BlobBackend    string `env:"BLOB_BACKEND" env-default:"supabase"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3Region       string `env:"S3_REGION" env-default:"auto"`
	S3AccessKeyID  string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey    string `env:"S3_SECRET_ACCESS_KEY"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3PublicURL    string `env:"S3_PUBLIC_URL"`
	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
	MinioPublicURL string `env:"MINIO_PUBLIC_URL"`

	// Stripe
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	StripeAPIURL        string `env:"STRIPE_API_URL"`
	PriceCents          int64  `env:"PRICE_CENTS" env-default:"99"`
	Currency            string `env:"CURRENCY" env-default:"eur"`
	ProductName         string `env:"PRODUCT_NAME" env-default:"AI image transformation"`

	// Replicate
	ReplicateAPIBaseURL   string        `env:"REPLICATE_API_BASE_URL" env-default:"https://api.replicate.com/v1"`
	ReplicateAPIToken     string        `env:"REPLICATE_API_TOKEN"`
	ReplicateModel        string        `env:"REPLICATE_MODEL" env-default:"google/nano-banana"`
	ReplicateMock         bool          `env:"REPLICATE_MOCK" env-default:"false"`
	ReplicateMockDelay    time.Duration `env:"REPLICATE_MOCK_DELAY" env-default:"2s"`
	ReplicatePollAttempts int           `env:"REPLICATE_POLL_ATTEMPTS" env-default:"60"`
	GenerationTimeout     time.Duration `env:"GENERATION_TIMEOUT" env-default:"10m"`

	// Optional infrastructure
	RedisAddr          string   `env:"REDIS_ADDR"`
	RedisPassword      string   `env:"REDIS_PASSWORD"`
	RedisDB            int      `env:"REDIS_DB" env-default:"0"`
	KafkaBrokers       []string `env:"KAFKA_BROKERS" env-separator:","`
	KafkaTopic         string   `env:"KAFKA_TOPIC" env-default:"project-events"`
	JaegerEndpoint     string   `env:"JAEGER_ENDPOINT"`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" env-default:"20"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}

	switch c.RecordBackend {
	case RecordBackendPostgREST:
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required")
		}
		if c.SupabaseAnonKey == "" {
			return fmt.Errorf("SUPABASE_ANON_KEY is required")
		}
		if c.SupabaseServiceRoleKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required")
		}
	case RecordBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when RECORD_BACKEND=postgres")
		}
	case RecordBackendMemory:
	default:
		return fmt.Errorf("unknown RECORD_BACKEND %q", c.RecordBackend)
	}

	switch c.BlobBackend {
	case BlobBackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceRoleKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for supabase storage")
		}
	case BlobBackendS3:
		if c.S3Bucket == "" || c.S3AccessKeyID == "" || c.S3SecretKey == "" {
			return fmt.Errorf("S3_BUCKET, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required when BLOB_BACKEND=s3")
		}
	case BlobBackendMinio:
		if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when BLOB_BACKEND=minio")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}

	if c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	if c.PriceCents <= 0 {
		return fmt.Errorf("PRICE_CENTS must be positive")
	}
	if !c.ReplicateMock && c.ReplicateAPIToken == "" {
		return fmt.Errorf("REPLICATE_API_TOKEN is required unless REPLICATE_MOCK=true")
	}
	if c.ReplicatePollAttempts <= 0 {
		return fmt.Errorf("REPLICATE_POLL_ATTEMPTS must be positive")
	}
	return nil
}
