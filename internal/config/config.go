package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ストレージバックエンドの種別。
const (
	StorageBackendS3         = "s3"
	StorageBackendFilesystem = "filesystem"
	StorageBackendMemory     = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	JWTSecret string
	TokenTTL  time.Duration

	// Account
	ReviewerInviteCode string
	BcryptCost         int

	// Upload
	UploadMaxSize int64

	// Storage
	StorageBackend       string
	StoragePrefix        string
	StoragePublicBaseURL string
	StorageDir           string
	S3Bucket             string
	S3Region             string
	S3Endpoint           string
	S3AccessKeyID        string
	S3SecretAccessKey    string
	S3UsePathStyle       bool

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitUpload  int
	RateLimitAuth    int

	// Server
	ServerPort        string
	TrustProxyHeaders bool // X-Forwarded-For / X-Real-IP をクライアントIPとして信頼する

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 7*24*time.Hour)
	cfg.ReviewerInviteCode = strings.TrimSpace(os.Getenv("REVIEWER_INVITE_CODE"))
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.UploadMaxSize = getEnvInt64("UPLOAD_MAX_SIZE", 10485760)

	cfg.StorageBackend = strings.ToLower(getEnvString("STORAGE_BACKEND", StorageBackendS3))
	cfg.StoragePrefix = strings.Trim(getEnvString("STORAGE_PREFIX", "records"), "/")
	cfg.StoragePublicBaseURL = strings.TrimRight(getEnvString("STORAGE_PUBLIC_BASE_URL", ""), "/")
	cfg.StorageDir = getEnvString("STORAGE_DIR", "./data/files")
	cfg.S3Bucket = getEnvString("S3_BUCKET", "")
	cfg.S3Region = getEnvString("S3_REGION", "us-east-1")
	cfg.S3Endpoint = getEnvString("S3_ENDPOINT", "")
	cfg.S3AccessKeyID = strings.TrimSpace(getEnvString("S3_ACCESS_KEY_ID", ""))
	cfg.S3SecretAccessKey = strings.TrimSpace(getEnvString("S3_SECRET_ACCESS_KEY", ""))
	cfg.S3UsePathStyle = getEnvBool("S3_USE_PATH_STYLE", cfg.S3Endpoint != "")

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitUpload = getEnvInt("RATE_LIMIT_UPLOAD", 20)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", false)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if err := cfg.validateStorage(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateStorage はストレージバックエンドごとの必須設定を検証する。
func (c *Config) validateStorage() error {
	switch c.StorageBackend {
	case StorageBackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=%s", StorageBackendS3)
		}
	case StorageBackendFilesystem:
		if c.StoragePublicBaseURL == "" {
			return fmt.Errorf("STORAGE_PUBLIC_BASE_URL is required when STORAGE_BACKEND=%s", StorageBackendFilesystem)
		}
	case StorageBackendMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND: %q", c.StorageBackend)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
