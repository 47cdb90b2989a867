package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	OllamaURL      string
	EmbeddingModel string
	EmbeddingDim   int
	EmbedTimeout   int // seconds

	GenerationModel   string
	GenerationTimeout int // seconds
	Temperature       float64
	MaxOutputTokens   int

	RerankerURL   string
	RerankerModel string
	RerankTimeout int // seconds

	TopK             int
	TopN             int
	MinSimilarity    float64
	MaxContextChars  int
	UsePlainPairText bool

	OTLPEndpoint string
}

func Load() *Config {
	return &Config{
		Env:        getEnv("ENV", "development"),
		Port:       getEnv("PORT", "9020"),
		DBHost:     getEnv("DB_HOST", "monograph-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "monograph_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "monograph_password"),
		DBName:     getEnv("DB_NAME", "monograph_db"),

		OllamaURL:      getEnv("OLLAMA_URL", "http://localhost:11434"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "bge-small-en-v1.5"),
		EmbeddingDim:   getEnvInt("EMBEDDING_DIM", 384),
		EmbedTimeout:   getEnvInt("EMBED_TIMEOUT_SECONDS", 30),

		GenerationModel:   getEnv("GENERATION_MODEL", "mistral:7b"),
		GenerationTimeout: getEnvInt("GENERATION_TIMEOUT_SECONDS", 120),
		Temperature:       getEnvFloat("GENERATION_TEMPERATURE", 0.1),
		MaxOutputTokens:   getEnvInt("GENERATION_MAX_TOKENS", 1000),

		RerankerURL:   getEnv("RERANKER_URL", "http://localhost:8001"),
		RerankerModel: getEnv("RERANKER_MODEL", "ms-marco-MiniLM-L-6-v2"),
		RerankTimeout: getEnvInt("RERANK_TIMEOUT_SECONDS", 30),

		TopK:             getEnvInt("SEARCH_TOP_K", 10),
		TopN:             getEnvInt("RERANK_TOP_N", 3),
		MinSimilarity:    getEnvFloat("MIN_SIMILARITY", 0.3),
		MaxContextChars:  getEnvInt("MAX_CONTEXT_CHARS", 8000),
		UsePlainPairText: getEnvBool("RERANK_PLAIN_PAIR_TEXT", false),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// Validate rejects configurations the pipeline cannot run with. Callers are
// expected to treat an error as fatal at startup.
func (c *Config) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("SEARCH_TOP_K must be positive, got %d", c.TopK)
	}
	if c.TopN <= 0 {
		return fmt.Errorf("RERANK_TOP_N must be positive, got %d", c.TopN)
	}
	if c.TopN > c.TopK {
		return fmt.Errorf("RERANK_TOP_N (%d) must not exceed SEARCH_TOP_K (%d)", c.TopN, c.TopK)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("MIN_SIMILARITY must be in [0, 1], got %f", c.MinSimilarity)
	}
	if c.MaxContextChars <= 0 {
		return fmt.Errorf("MAX_CONTEXT_CHARS must be positive, got %d", c.MaxContextChars)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("GENERATION_MAX_TOKENS must be positive, got %d", c.MaxOutputTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("GENERATION_TEMPERATURE must be in [0, 2], got %f", c.Temperature)
	}
	return nil
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
