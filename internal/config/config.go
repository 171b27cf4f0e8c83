package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Log         LogConfig
	Sync        SyncConfig
	Pinecone    PineconeConfig
	Voyage      VoyageConfig
	OpenRouter  OpenRouterConfig
	Bedrock     BedrockConfig
	Embedding   EmbeddingConfig
	VectorStore VectorStoreConfig
	Database    DatabaseConfig
	Valkey      ValkeyConfig
	Archive     ArchiveConfig
	MinIO       MinIOConfig
	S3          S3Config
	Server      ServerConfig
	Auth        AuthConfig
	Webhook     WebhookConfig
	MCP         MCPConfig
	Scheduler   SchedulerConfig
}

type LogConfig struct {
	Level  string // LOG_LEVEL: debug|info|warn|error
	Format string // LOG_FORMAT: json|text
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type SyncConfig struct {
	RepoRoot    string
	ErrorsOut   string
	Namespace   string
	BatchSize   int
	Concurrency int
	MaxTokens   int
	Dimension   int

	// GitHub Actions context.
	GitHubRepository string
	GitHubSHA        string
	GitHubEventPath  string
	GitHubEventName  string

	// Worker checkout source; empty means REPO_ROOT is managed externally.
	RepoURL  string
	GitToken string
}

type PineconeConfig struct {
	APIKey     string
	Index      string
	Cloud      string
	Region     string
	IndexHost  string
	APIVersion string
	BaseURL    string
}

type VoyageConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	RPM            int
	MaxBatchTokens int // VOYAGE_MAX_BATCH_TOKENS: summed input tokens per request
}

type OpenRouterConfig struct {
	APIKey            string
	Model             string
	BaseURL           string
	BaseURLEmbeddings string
	Dimensions        int
}

type BedrockConfig struct {
	Region  string
	ModelID string
}

type EmbeddingConfig struct {
	Provider string // voyage|openrouter|bedrock
}

type VectorStoreConfig struct {
	Backend string // pinecone|pgvector|memory
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type ValkeyConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
	// ReclaimIdle is how long a failed or abandoned job stays pending before
	// a worker claims it again.
	ReclaimIdle time.Duration
}

type ArchiveConfig struct {
	Target string // none|minio|s3
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type S3Config struct {
	Region   string // S3_REGION
	Bucket   string // S3_BUCKET
	Prefix   string // S3_PREFIX (optional key prefix)
	Endpoint string // S3_ENDPOINT (for MinIO/LocalStack compatibility)
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type AuthConfig struct {
	Enabled      bool
	IssuerURL    string
	PublicIssuer string
	Audience     string
}

type WebhookConfig struct {
	GitHubSecret string
}

type MCPConfig struct {
	Addr    string
	BaseURL string // MCP_BASE_URL: public URL, enables the protected resource metadata endpoint
}

type SchedulerConfig struct {
	RetryInterval time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Sync: SyncConfig{
			RepoRoot:         getEnv("REPO_ROOT", "."),
			ErrorsOut:        getEnv("ERRORS_OUT", "chat/.vector_sync_errors.jsonl"),
			Namespace:        os.Getenv("VECTOR_NAMESPACE"),
			BatchSize:        getEnvInt("SYNC_BATCH_SIZE", 10),
			Concurrency:      getEnvInt("SYNC_CONCURRENCY", 1),
			MaxTokens:        getEnvInt("MAX_TOKENS", 8192),
			Dimension:        getEnvInt("EMBEDDING_DIMENSION", 1024),
			GitHubRepository: os.Getenv("GITHUB_REPOSITORY"),
			GitHubSHA:        os.Getenv("GITHUB_SHA"),
			GitHubEventPath:  os.Getenv("GITHUB_EVENT_PATH"),
			GitHubEventName:  os.Getenv("GITHUB_EVENT_NAME"),
			RepoURL:          os.Getenv("SYNC_REPO_URL"),
			GitToken:         os.Getenv("GIT_TOKEN"),
		},
		Pinecone: PineconeConfig{
			APIKey:     os.Getenv("PINECONE_API_KEY"),
			Index:      getEnv("PINECONE_INDEX", "repo-chunks"),
			Cloud:      getEnv("PINECONE_CLOUD", "aws"),
			Region:     getEnv("PINECONE_REGION", "us-east-1"),
			IndexHost:  os.Getenv("PINECONE_INDEX_HOST"),
			APIVersion: getEnv("PINECONE_API_VERSION", "2025-01"),
			BaseURL:    getEnv("PINECONE_BASE_URL", "https://api.pinecone.io"),
		},
		Voyage: VoyageConfig{
			APIKey:         os.Getenv("VOYAGE_API_KEY"),
			Model:          getEnv("VOYAGE_MODEL", "voyage-code-3"),
			BaseURL:        getEnv("VOYAGE_BASE_URL", "https://api.voyageai.com/v1/embeddings"),
			RPM:            getEnvInt("VOYAGE_RPM", 0),
			MaxBatchTokens: getEnvInt("VOYAGE_MAX_BATCH_TOKENS", 120000),
		},
		OpenRouter: OpenRouterConfig{
			APIKey:            os.Getenv("OPENROUTER_API_KEY"),
			Model:             os.Getenv("OPENROUTER_MODEL"),
			BaseURL:           os.Getenv("OPENROUTER_BASE_URL"),
			BaseURLEmbeddings: os.Getenv("OPENROUTER_BASE_URL_EMBEDDINGS"),
			Dimensions:        getEnvInt("OPENROUTER_DIMENSIONS", 1024),
		},
		Bedrock: BedrockConfig{
			Region:  getEnv("BEDROCK_REGION", "us-east-1"),
			ModelID: getEnv("BEDROCK_MODEL_ID", "cohere.embed-english-v3"),
		},
		Embedding: EmbeddingConfig{
			Provider: getEnv("EMBEDDING_PROVIDER", "voyage"),
		},
		VectorStore: VectorStoreConfig{
			Backend: getEnv("VECTOR_BACKEND", "pinecone"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "vectorsync"),
			Password: getEnv("DB_PASSWORD", "vectorsync"),
			Name:     getEnv("DB_NAME", "vectorsync"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 1)),
		},
		Valkey: ValkeyConfig{
			Addr:        getEnv("VALKEY_ADDR", "localhost:6379"),
			Password:    getEnv("VALKEY_PASSWORD", ""),
			DB:          getEnvInt("VALKEY_DB", 0),
			LockTTL:     getEnvDuration("SYNC_LOCK_TTL_SECS", 30*time.Minute),
			ReclaimIdle: getEnvDuration("JOB_RECLAIM_IDLE_SECS", time.Minute),
		},
		Archive: ArchiveConfig{
			Target: getEnv("JOURNAL_ARCHIVE", "none"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "vectorsync"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "vectorsync123"),
			Bucket:    getEnv("MINIO_BUCKET", "vectorsync"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		S3: S3Config{
			Region:   getEnv("S3_REGION", ""),
			Bucket:   getEnv("S3_BUCKET", ""),
			Prefix:   getEnv("S3_PREFIX", ""),
			Endpoint: getEnv("S3_ENDPOINT", ""),
		},
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT_SECS", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT_SECS", 60*time.Second),
		},
		Auth: AuthConfig{
			Enabled:      getEnvBool("AUTH_ENABLED", false),
			IssuerURL:    os.Getenv("AUTH_ISSUER_URL"),
			PublicIssuer: os.Getenv("AUTH_PUBLIC_ISSUER"),
			Audience:     getEnv("AUTH_AUDIENCE", "vectorsync"),
		},
		Webhook: WebhookConfig{
			GitHubSecret: os.Getenv("GITHUB_WEBHOOK_SECRET"),
		},
		MCP: MCPConfig{
			Addr:    getEnv("MCP_ADDR", ":8090"),
			BaseURL: os.Getenv("MCP_BASE_URL"),
		},
		Scheduler: SchedulerConfig{
			RetryInterval: getEnvDuration("RETRY_INTERVAL_SECS", time.Hour),
		},
	}

	if cfg.Sync.BatchSize <= 0 {
		return nil, fmt.Errorf("SYNC_BATCH_SIZE must be positive, got %d", cfg.Sync.BatchSize)
	}
	if cfg.Sync.MaxTokens <= 0 {
		return nil, fmt.Errorf("MAX_TOKENS must be positive, got %d", cfg.Sync.MaxTokens)
	}
	if cfg.Sync.Concurrency <= 0 {
		cfg.Sync.Concurrency = 1
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration reads a whole number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}
