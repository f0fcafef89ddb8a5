package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	RetrievalModeFull    = "full"
	RetrievalModeIndexed = "indexed"

	StorageBackendLocal    = "local"
	StorageBackendPostgres = "postgres"

	MemoryBackendFile     = "file"
	MemoryBackendRedis    = "redis"
	MemoryBackendPostgres = "postgres"

	IndexBackendBolt     = "bolt"
	IndexBackendPgvector = "pgvector"
)

type Config struct {
	App       AppConfig
	LLM       LLMConfig
	Retrieval RetrievalConfig
	Storage   StorageConfig
	Memory    MemoryConfig
	Events    EventsConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	BodyLimitMB        int
	// AllowGeneralChat lets the chat endpoint answer without any uploaded documents.
	AllowGeneralChat bool
}

type LLMConfig struct {
	Provider          string // "gemini", "ollama", "huggingface"
	Model             string
	BaseURL           string
	GeminiAPIKey      string
	HuggingFaceAPIKey string
	MaxRetries        int
	RetryBaseDelay    time.Duration
	Timeout           time.Duration
	StreamTimeout     time.Duration
	RequestsPerSecond float64
	Burst             int
}

type RetrievalConfig struct {
	Mode              string // "full" or "indexed"
	TopK              int
	MaxContextChars   int
	ChunkSize         int
	ChunkOverlap      int
	EmbeddingProvider string // "tfidf" or "ollama"
	OllamaBaseURL     string
	OllamaModel       string
	IndexBackend      string // "bolt" or "pgvector"
	IndexPath         string
	QueryHintsFile    string
}

type StorageConfig struct {
	Backend          string // "local" or "postgres"
	DataDir          string
	DBConnection     string
	MaxFileSizeBytes int64
	WatchDataDir     bool
}

type MemoryConfig struct {
	Enabled         bool
	Backend         string // "file", "redis", "postgres"
	Dir             string
	RedisURL        string
	MaxHistory      int
	ContextTurns    int
	ModelExtraction bool
}

type EventsConfig struct {
	Topic   string
	NatsURL string
}

type TracingConfig struct {
	Enabled  bool
	Endpoint string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "5001"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			BodyLimitMB:        getEnvAsInt("BODY_LIMIT_MB", 100),
			AllowGeneralChat:   getEnvAsBool("ALLOW_GENERAL_CHAT", false),
		},
		LLM: LLMConfig{
			Provider:          strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
			Model:             getEnv("LLM_MODEL", "gemini-2.0-flash"),
			BaseURL:           getEnv("LLM_BASE_URL", ""),
			GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
			HuggingFaceAPIKey: getEnv("HUGGINGFACE_API_KEY", ""),
			MaxRetries:        getEnvAsInt("LLM_MAX_RETRIES", 3),
			RetryBaseDelay:    time.Duration(getEnvAsInt("LLM_RETRY_BASE_DELAY_MS", 1000)) * time.Millisecond,
			Timeout:           time.Duration(getEnvAsInt("LLM_TIMEOUT_SECONDS", 120)) * time.Second,
			StreamTimeout:     time.Duration(getEnvAsInt("LLM_STREAM_TIMEOUT_SECONDS", 300)) * time.Second,
			RequestsPerSecond: getEnvAsFloat("LLM_REQUESTS_PER_SECOND", 2),
			Burst:             getEnvAsInt("LLM_BURST", 4),
		},
		Retrieval: RetrievalConfig{
			Mode:              strings.ToLower(getEnv("RETRIEVAL_MODE", RetrievalModeFull)),
			TopK:              getEnvAsInt("RETRIEVAL_TOP_K", 3),
			MaxContextChars:   getEnvAsInt("MAX_CONTEXT_CHARS", 400000),
			ChunkSize:         getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap:      getEnvAsInt("CHUNK_OVERLAP", 200),
			EmbeddingProvider: strings.ToLower(getEnv("EMBEDDING_PROVIDER", "tfidf")),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			IndexBackend:      strings.ToLower(getEnv("INDEX_BACKEND", IndexBackendBolt)),
			IndexPath:         getEnv("INDEX_PATH", "storage/index.db"),
			QueryHintsFile:    getEnv("QUERY_HINTS_FILE", ""),
		},
		Storage: StorageConfig{
			Backend:          strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendLocal)),
			DataDir:          getEnv("DATA_DIR", "data"),
			DBConnection:     getEnv("DB_CONNECTION_STRING", ""),
			MaxFileSizeBytes: int64(getEnvAsInt("MAX_FILE_SIZE_MB", 50)) * 1024 * 1024,
			WatchDataDir:     getEnvAsBool("WATCH_DATA_DIR", false),
		},
		Memory: MemoryConfig{
			Enabled:         getEnvAsBool("MEMORY_ENABLED", true),
			Backend:         strings.ToLower(getEnv("MEMORY_BACKEND", MemoryBackendFile)),
			Dir:             getEnv("MEMORY_DIR", "user_memory"),
			RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379"),
			MaxHistory:      getEnvAsInt("MAX_HISTORY", 50),
			ContextTurns:    getEnvAsInt("MEMORY_CONTEXT_TURNS", 10),
			ModelExtraction: getEnvAsBool("MEMORY_MODEL_EXTRACTION", false),
		},
		Events: EventsConfig{
			Topic:   getEnv("EVENTS_TOPIC", "documents.changed"),
			NatsURL: getEnv("NATS_URL", ""),
		},
		Tracing: TracingConfig{
			Enabled:  getEnvAsBool("OTEL_ENABLED", false),
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
