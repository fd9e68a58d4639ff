package kling

import (
	"time"

	"video-studio-server/modules/common/config"
)

// 토큰 유효 시간 (Kling 권장 30분)
const tokenTTL = 30 * time.Minute

// Config - Kling AI API 설정
type Config struct {
	AccessKey    string
	SecretKey    string
	BaseURL      string // .../v1/videos
	FetchTimeout time.Duration
}

// NewConfig - 공통 설정에서 Kling 어댑터 설정 추출
func NewConfig(cfg *config.Config) Config {
	return Config{
		AccessKey:    cfg.KlingAccessKey,
		SecretKey:    cfg.KlingSecretKey,
		BaseURL:      cfg.KlingAPIURL,
		FetchTimeout: cfg.FetchTimeout,
	}
}
