package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderVeo   = "veo"
	ProviderKling = "kling"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// "veo" (기본) | "kling"
	VideoProvider string

	// Gemini / Veo
	GeminiAPIKey   string
	VeoModel       string
	PollInterval   time.Duration
	PollTimeout    time.Duration // 0 = 무제한
	MaxPolls       int           // 0 = 무제한
	PhraseInterval time.Duration
	FetchTimeout   time.Duration

	// Kling AI (VIDEO_PROVIDER=kling)
	KlingAccessKey string
	KlingSecretKey string
	KlingAPIURL    string
	KlingModel     string

	// Media
	MaxUploadBytes int64
	MediaTTL       time.Duration

	// Session
	SessionIdleTTL         time.Duration
	SessionCleanupSchedule string

	// Redis (선택)
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Server
	Port   string
	AppEnv string

	// .env 로드 여부 (로그용)
	DotEnvLoaded bool
}

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	dotEnvLoaded := godotenv.Load() == nil

	apiKey := getEnv("API_KEY", "")
	if apiKey == "" {
		apiKey = getEnv("GEMINI_API_KEY", "")
	}

	cfg := &Config{
		VideoProvider: strings.ToLower(getEnv("VIDEO_PROVIDER", ProviderVeo)),

		GeminiAPIKey:   apiKey,
		VeoModel:       getEnv("VEO_MODEL", "veo-2.0-generate-001"),
		PollInterval:   getDuration("VEO_POLL_INTERVAL", 10*time.Second),
		PollTimeout:    getDuration("VEO_POLL_TIMEOUT", 0),
		MaxPolls:       getInt("VEO_MAX_POLLS", 0),
		PhraseInterval: getDuration("PROGRESS_PHRASE_INTERVAL", 3*time.Second),
		FetchTimeout:   getDuration("VIDEO_FETCH_TIMEOUT", 5*time.Minute),

		KlingAccessKey: getEnv("KLING_AI_ACCESS_KEY", ""),
		KlingSecretKey: getEnv("KLING_AI_SECRET_KEY", ""),
		KlingAPIURL:    getEnv("KLING_AI_API_URL", "https://api.klingai.com/v1/videos"),
		KlingModel:     getEnv("KLING_MODEL", "kling-v1"),

		MaxUploadBytes: int64(getInt("MAX_UPLOAD_MB", 20)) << 20,
		MediaTTL:       getDuration("MEDIA_TTL", 2*time.Hour),

		SessionIdleTTL:         getDuration("SESSION_IDLE_TTL", 2*time.Hour),
		SessionCleanupSchedule: getEnv("SESSION_CLEANUP_SCHEDULE", "@every 5m"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getBool("REDIS_USE_TLS", false),

		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "production"),

		DotEnvLoaded: dotEnvLoaded,
	}

	// 필수 환경변수 검증
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	switch c.VideoProvider {
	case ProviderVeo:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("API_KEY (or GEMINI_API_KEY) is required")
		}
	case ProviderKling:
		if c.KlingAccessKey == "" || c.KlingSecretKey == "" {
			return fmt.Errorf("KLING_AI_ACCESS_KEY and KLING_AI_SECRET_KEY are required")
		}
	default:
		return fmt.Errorf("unknown VIDEO_PROVIDER %q", c.VideoProvider)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("VEO_POLL_INTERVAL must be positive")
	}
	if c.PhraseInterval <= 0 {
		return fmt.Errorf("PROGRESS_PHRASE_INTERVAL must be positive")
	}
	if c.MaxPolls < 0 {
		return fmt.Errorf("VEO_MAX_POLLS must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	return nil
}

// DefaultModel - 요청에 model 이 없을 때 사용할 모델
func (c *Config) DefaultModel() string {
	if c.VideoProvider == ProviderKling {
		return c.KlingModel
	}
	return c.VeoModel
}

// RedisEnabled - REDIS_HOST 가 설정된 경우에만 fan-out 사용
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// IsDevelopment - 콘솔 로그 출력 여부
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if raw := getEnv(key, ""); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if raw := getEnv(key, ""); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDuration - "10s" 형식 또는 초 단위 정수 모두 허용
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
