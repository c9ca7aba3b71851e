package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

type Config struct {
	Port                 string
	AllowedOrigin        string
	Storage              string
	DatabaseURL          string
	MongoURI             string
	MongoDatabase        string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	PartyCacheTTLSeconds int
	LockTTLSeconds       int
	AuthSecret           string
	LogLevel             string
	LogFormat            string
}

// Load reads .env when present and then the process environment. Values
// already set in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cfg := Config{
		Port:                 getEnv("PORT", "8080"),
		AllowedOrigin:        getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		MongoURI:             os.Getenv("MONGO_URI"),
		MongoDatabase:        getEnv("MONGO_DATABASE", "bahikhata"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              redisDB,
		PartyCacheTTLSeconds: positiveInt("PARTY_CACHE_TTL_SECONDS", 300),
		LockTTLSeconds:       positiveInt("LOCK_TTL_SECONDS", 10),
		AuthSecret:           strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
	}
	cfg.Storage = resolveStorage(os.Getenv("STORAGE"), cfg)

	return cfg
}

// resolveStorage picks the backend. Without an explicit STORAGE the first
// configured database wins, postgres before mongo.
func resolveStorage(raw string, cfg Config) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StorageMemory:
		return StorageMemory
	case StoragePostgres:
		return StoragePostgres
	case StorageMongo:
		return StorageMongo
	}
	if cfg.DatabaseURL != "" {
		return StoragePostgres
	}
	if cfg.MongoURI != "" {
		return StorageMongo
	}
	return StorageMemory
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func positiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
