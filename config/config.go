// Package config loads construction-time configuration from the
// environment. An optional .env file in the working directory is read
// first; real environment variables win.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	BackendEmbedded = "embedded"
	BackendPostgres = "postgres"
)

type LLMConfig struct {
	Provider string
	Model    string
}

type EmbeddingsConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type Config struct {
	LLM        LLMConfig
	Embeddings EmbeddingsConfig

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	VectorBackend string
	PostgresDSN   string

	DocsDir    string
	ListenAddr string

	ChunkSize     int
	ChunkOverlap  int
	MaxResults    int
	MaxHistory    int
	MaxToolRounds int
}

func Load() Config {
	// Missing .env is fine; explicit environment always takes precedence.
	_ = godotenv.Load()

	cfg := Config{
		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", ProviderOllama),
			Model:    getEnv("LLM_MODEL", "llama3.1:8b"),
		},
		Embeddings: EmbeddingsConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOllama),
			Model:     getEnv("EMBEDDINGS_MODEL", "nomic-embed-text"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 768),
		},
		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		VectorBackend: getEnv("VECTOR_BACKEND", BackendEmbedded),
		PostgresDSN:   getEnv("POSTGRES_DSN", "postgres://localhost:5432/course-rag?sslmode=disable"),
		DocsDir:       getEnv("DOCS_DIR", "./docs"),
		ListenAddr:    getEnv("LISTEN_ADDR", ":8000"),
		ChunkSize:     getEnvInt("CHUNK_SIZE", 800),
		ChunkOverlap:  getEnvInt("CHUNK_OVERLAP", 100),
		MaxResults:    getEnvInt("MAX_RESULTS", 5),
		MaxHistory:    getEnvInt("MAX_HISTORY", 2),
		MaxToolRounds: getEnvInt("MAX_TOOL_ROUNDS", 5),
	}

	// Overlap must stay strictly below chunk size to guarantee the
	// chunker makes forward progress.
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize - 1
	}

	return cfg
}

// Validate reports configuration combinations that cannot work at all.
func (c Config) Validate() error {
	switch c.VectorBackend {
	case BackendEmbedded, BackendPostgres:
	default:
		return fmt.Errorf("unknown vector backend: %s", c.VectorBackend)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.MaxHistory < 0 {
		return fmt.Errorf("max history must not be negative, got %d", c.MaxHistory)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
