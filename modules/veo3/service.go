package veo3

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"video-studio-server/modules/common/gemini"
	"video-studio-server/modules/generation"
)

// videosAPI - genai 클라이언트 중 Veo 에서 쓰는 부분
type videosAPI interface {
	GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
	GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
}

type genaiVideos struct {
	client *genai.Client
}

func (g genaiVideos) GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	return g.client.Models.GenerateVideos(ctx, model, prompt, image, config)
}

func (g genaiVideos) GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return g.client.Operations.GetVideosOperation(ctx, op, nil)
}

// Service - generation.VideoService 의 Veo 구현
type Service struct {
	config     Config
	videos     videosAPI
	httpClient *http.Client
	log        zerolog.Logger
}

var _ generation.VideoService = (*Service)(nil)

func NewService(client *genai.Client, cfg Config, log zerolog.Logger) *Service {
	return newService(genaiVideos{client: client}, cfg, log)
}

func newService(videos videosAPI, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		config: cfg,
		videos: videos,
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		log: log,
	}
}

// GenerateVideos - 영상 생성 작업 시작
func (s *Service) GenerateVideos(ctx context.Context, req *generation.GenerationRequest) (*generation.Operation, error) {
	cfg := generateConfig(req)
	s.log.Debug().Str("model", req.Model()).Str("aspectRatio", cfg.AspectRatio).
		Bool("image", req.HasImage()).Msg("🚀 [Veo] Creating generation operation")

	op, err := s.videos.GenerateVideos(ctx, req.Model(), req.ComposedPrompt(), inputImage(req), cfg)
	if err != nil {
		return nil, s.classify(err)
	}
	if op == nil {
		return nil, fmt.Errorf("veo returned no operation")
	}
	return fromOperation(op), nil
}

// GetOperation - 작업 상태 재조회
func (s *Service) GetOperation(ctx context.Context, op *generation.Operation) (*generation.Operation, error) {
	native, ok := op.Native.(*genai.GenerateVideosOperation)
	if !ok || native == nil {
		native = &genai.GenerateVideosOperation{Name: op.Name}
	}

	next, err := s.videos.GetVideosOperation(ctx, native)
	if err != nil {
		return nil, s.classify(err)
	}
	if next == nil {
		return nil, fmt.Errorf("veo returned no operation for %s", op.Name)
	}
	return fromOperation(next), nil
}

// FetchVideo - 결과 URI 에 key 쿼리 파라미터를 붙여 다운로드
func (s *Service) FetchVideo(ctx context.Context, uri string) ([]byte, string, error) {
	target, err := authorizedURL(uri, s.config.APIKey)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
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
		return nil, "", fmt.Errorf("video download returned status %d: %s", resp.StatusCode, truncate(string(body), 512))
	}

	s.log.Info().Int("bytes", len(body)).Msg("📥 [Veo] Video downloaded")
	return body, contentType(resp.Header.Get("Content-Type")), nil
}

// classify - quota 초과는 사용자에게 보이는 메시지를 구분
func (s *Service) classify(err error) error {
	if gemini.IsQuotaError(err) {
		s.log.Warn().Err(err).Msg("⚠️ [Veo] Quota exceeded")
		return fmt.Errorf("veo quota exceeded: %w", err)
	}
	return err
}

// authorizedURL - 기존 쿼리는 그대로 두고 key 만 뒤에 붙임
func authorizedURL(uri, apiKey string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid video uri: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid video uri scheme %q", u.Scheme)
	}

	// 이미 key 가 있으면 교체 (나머지 파라미터 순서/이스케이프 유지)
	var params []string
	if u.RawQuery != "" {
		for _, p := range strings.Split(u.RawQuery, "&") {
			if p == "key" || strings.HasPrefix(p, "key=") {
				continue
			}
			params = append(params, p)
		}
	}
	params = append(params, "key="+url.QueryEscape(apiKey))
	u.RawQuery = strings.Join(params, "&")
	return u.String(), nil
}

func contentType(header string) string {
	if header == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	// 다운로드 엔드포인트가 octet-stream 을 주는 경우가 있음
	if mediaType == "application/octet-stream" {
		return ""
	}
	return mediaType
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
