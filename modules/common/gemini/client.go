package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// NewClient - Gemini API 백엔드용 genai 클라이언트 생성
// httpClient 가 nil 이면 SDK 기본 클라이언트 사용
func NewClient(ctx context.Context, apiKey string, httpClient *http.Client) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("no API key provided")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// IsQuotaError - 429 Rate Limit / quota 에러인지 확인
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "resource_exhausted")
}
