package veo3

import (
	"time"

	"video-studio-server/modules/common/config"
)

// MaxClipSeconds - Veo 가 durationSeconds 로 받는 최대 길이
// 더 긴 요청은 프롬프트 텍스트로만 전달
const MaxClipSeconds = 8

type Config struct {
	APIKey       string
	FetchTimeout time.Duration
}

// NewConfig - 공통 설정에서 Veo 어댑터 설정 추출
func NewConfig(cfg *config.Config) Config {
	return Config{
		APIKey:       cfg.GeminiAPIKey,
		FetchTimeout: cfg.FetchTimeout,
	}
}
