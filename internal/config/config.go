package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config 应用配置
type Config struct {
	Env             string
	DatabaseURL     string
	Port            string
	SiteName        string
	OllamaHost      string
	OllamaModel     string
	EmbeddingDim    int
	EmbeddingsFile  string
	EmbedTimeout    time.Duration
	EmbedBatchSize  int
	SearchCacheSize int
	SearchCacheTTL  time.Duration
	AppSecret       string
}

// Load 加载配置
func Load() *Config {
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "kinosearch")
	dbSSL := getEnv("DB_SSLMODE", "disable")

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL)

	appSecret := getEnv("APP_SECRET", "your-secret-key-change-in-production")
	if getEnv("APP_ENV", "development") == "production" && appSecret == "your-secret-key-change-in-production" {
		fmt.Println("【严重警告】生产环境正在使用默认密钥！请立即设置 APP_SECRET 环境变量。")
	}

	return &Config{
		Env:             getEnv("APP_ENV", "development"),
		DatabaseURL:     dbURL,
		Port:            getEnv("PORT", "5002"),
		SiteName:        getEnv("SITE_NAME", "KinoSearch"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:     getEnv("OLLAMA_MODEL", "quentinz/bge-base-zh-v1.5"),
		EmbeddingDim:    getEnvInt("EMBEDDING_DIM", 768),
		EmbeddingsFile:  getEnv("EMBEDDINGS_FILE", "movies_embeddings.bin"),
		EmbedTimeout:    time.Duration(getEnvInt("EMBED_TIMEOUT_SECONDS", 20)) * time.Second,
		EmbedBatchSize:  getEnvInt("EMBED_BATCH_SIZE", 64),
		SearchCacheSize: getEnvInt("SEARCH_CACHE_SIZE", 1000),
		SearchCacheTTL:  time.Duration(getEnvInt("SEARCH_CACHE_TTL_MINUTES", 60)) * time.Minute,
		AppSecret:       appSecret,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
