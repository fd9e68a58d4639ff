package kling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/rs/zerolog"

	"video-studio-server/modules/generation"
)

// Service - generation.VideoService 의 Kling AI 구현
type Service struct {
	config     Config
	httpClient *http.Client
	now        func() time.Time
	log        zerolog.Logger
}

var _ generation.VideoService = (*Service)(nil)

func NewService(cfg Config, log zerolog.Logger) *Service {
	return &Service{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		now: time.Now,
		log: log,
	}
}

// token - Kling AI JWT (HS256, iss = access key)
func (s *Service) token() (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"iss": s.config.AccessKey,
		"exp": now.Add(tokenTTL).Unix(),
		"nbf": now.Add(-5 * time.Second).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign kling token: %w", err)
	}
	return signed, nil
}

// GenerateVideos - 이미지 유무에 따라 image2video / text2video 작업 생성
func (s *Service) GenerateVideos(ctx context.Context, req *generation.GenerationRequest) (*generation.Operation, error) {
	kind, body := newTaskRequest(req)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	s.log.Debug().Str("model", body.ModelName).Str("task", kind).Str("duration", body.Duration).
		Msg("🚀 [Kling] Creating task")

	data, err := s.call(ctx, http.MethodPost, s.endpoint(kind), payload)
	if err != nil {
		return nil, err
	}
	if data.TaskID == "" {
		return nil, fmt.Errorf("kling returned no task id")
	}

	s.log.Info().Str("taskId", data.TaskID).Msg("✅ [Kling] Task created")
	return toOperation(kind, data), nil
}

// GetOperation - 작업 상태 조회
func (s *Service) GetOperation(ctx context.Context, op *generation.Operation) (*generation.Operation, error) {
	ref, ok := op.Native.(taskRef)
	if !ok {
		parsed, err := parseTaskName(op.Name)
		if err != nil {
			return nil, err
		}
		ref = parsed
	}

	data, err := s.call(ctx, http.MethodGet, s.endpoint(ref.Kind, ref.TaskID), nil)
	if err != nil {
		return nil, err
	}
	if data.TaskID == "" {
		data.TaskID = ref.TaskID
	}

	s.log.Debug().Str("taskId", ref.TaskID).Str("status", data.TaskStatus).Msg("📊 [Kling] Task status")
	return toOperation(ref.Kind, data), nil
}

// FetchVideo - 결과 URL 은 서명된 CDN 주소라 별도 인증 없음
func (s *Service) FetchVideo(ctx context.Context, uri string) ([]byte, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, "", fmt.Errorf("invalid video uri: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("invalid video uri scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download video: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read video: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("video download returned status %d", resp.StatusCode)
	}

	s.log.Info().Int("bytes", len(body)).Msg("📥 [Kling] Video downloaded")

	mimeType := ""
	if mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && mediaType != "application/octet-stream" {
		mimeType = mediaType
	}
	return body, mimeType, nil
}

func (s *Service) endpoint(parts ...string) string {
	return strings.TrimRight(s.config.BaseURL, "/") + "/" + strings.Join(parts, "/")
}

// call - 인증 헤더를 붙여 요청하고 envelope 의 code 검사
func (s *Service) call(ctx context.Context, method, target string, payload []byte) (taskData, error) {
	token, err := s.token()
	if err != nil {
		return taskData{}, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return taskData{}, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return taskData{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return taskData{}, fmt.Errorf("failed to read response: %w", err)
	}

	var result apiResponse
	decodeErr := json.Unmarshal(raw, &result)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && result.Message != "" {
			return taskData{}, fmt.Errorf("kling API returned status %d: %s", resp.StatusCode, result.Message)
		}
		return taskData{}, fmt.Errorf("kling API returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return taskData{}, fmt.Errorf("failed to unmarshal response: %w", decodeErr)
	}
	if result.Code != 0 {
		return taskData{}, fmt.Errorf("kling API error code %d: %s", result.Code, result.Message)
	}
	return result.Data, nil
}
