package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret string
	RedisAddr string

	// Extraction tool and working directories
	YtdlpPath   string
	SubtitleDir string
	DownloadDir string
	CookieDir   string

	// Concurrent download permit pool size
	DownloadPermits int

	// News headline API
	NewsAPIKey string
	NewsAPIURL string

	// Currency conversion rates for the asset summary
	USDToCNYRate float64

	// MinIO/S3 archive configuration
	ArchiveEnabled bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string
}

func Load() *Config {
	permits, _ := strconv.Atoi(getEnvOrDefault("DOWNLOAD_PERMITS", "3"))
	if permits <= 0 {
		permits = 3
	}

	usdToCNY, _ := strconv.ParseFloat(getEnvOrDefault("USD_TO_CNY_RATE", "7.2"), 64)
	if usdToCNY <= 0 {
		usdToCNY = 7.2
	}

	minioUseSSL, _ := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", "false"))
	archiveEnabled, _ := strconv.ParseBool(getEnvOrDefault("ARCHIVE_ENABLED", "false"))

	return &Config{
		ServerAddr:      getEnvOrDefault("SERVER_ADDR", ":8080"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		DBHost:          getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:          getEnvOrDefault("DB_PORT", "5432"),
		DBUser:          getEnvOrDefault("DB_USER", "followread"),
		DBPassword:      getEnvOrDefault("DB_PASSWORD", "followread_dev_password"),
		DBName:          getEnvOrDefault("DB_NAME", "followread"),
		JWTSecret:       getEnvOrDefault("JWT_SECRET", generateDefaultSecret()),
		RedisAddr:       getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		YtdlpPath:       getEnvOrDefault("YTDLP_PATH", "yt-dlp"),
		SubtitleDir:     getEnvOrDefault("SUBTITLE_DIR", "uploads/subtitles"),
		DownloadDir:     getEnvOrDefault("DOWNLOAD_DIR", "downloads"),
		CookieDir:       getEnvOrDefault("COOKIE_DIR", os.TempDir()),
		DownloadPermits: permits,
		NewsAPIKey:      os.Getenv("NEWS_API_KEY"),
		NewsAPIURL:      getEnvOrDefault("NEWS_API_URL", "https://newsapi.org/v2/top-headlines"),
		USDToCNYRate:    usdToCNY,
		ArchiveEnabled:  archiveEnabled,
		MinioEndpoint:   getEnvOrDefault("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:  getEnvOrDefault("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey:  getEnvOrDefault("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:     getEnvOrDefault("MINIO_BUCKET", "media-archive"),
		MinioUseSSL:     minioUseSSL,
		MinioRegion:     getEnvOrDefault("MINIO_REGION", "us-east-1"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func generateDefaultSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "dev-secret-change-in-production"
	}
	return hex.EncodeToString(bytes)
}
