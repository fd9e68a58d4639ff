package veo3

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"video-studio-server/modules/generation"
)

// generateConfig - GenerationRequest → genai.GenerateVideosConfig
func generateConfig(req *generation.GenerationRequest) *genai.GenerateVideosConfig {
	cfg := &genai.GenerateVideosConfig{NumberOfVideos: 1}

	if d := req.DurationSeconds(); d <= MaxClipSeconds {
		cfg.DurationSeconds = genai.Ptr(int32(d))
	}

	// 1:1 은 Veo 미지원 → 프롬프트에만 남김
	switch ar := req.AspectRatio(); ar {
	case "16:9", "9:16":
		cfg.AspectRatio = ar
	}

	return cfg
}

// inputImage - 첨부 이미지가 있으면 genai.Image 로 변환
func inputImage(req *generation.GenerationRequest) *genai.Image {
	img, ok := req.Image()
	if !ok {
		return nil
	}
	return &genai.Image{
		ImageBytes: img.Data,
		MIMEType:   img.MimeType,
	}
}

// fromOperation - genai 오퍼레이션을 컨트롤러용 Operation 으로 변환
func fromOperation(op *genai.GenerateVideosOperation) *generation.Operation {
	if op == nil {
		return nil
	}

	out := &generation.Operation{
		Name:   op.Name,
		Done:   op.Done,
		Native: op,
	}
	if !op.Done {
		return out
	}

	if len(op.Error) > 0 {
		out.Failure = operationFailure(op.Error)
		return out
	}

	if op.Response != nil && len(op.Response.GeneratedVideos) > 0 {
		if v := op.Response.GeneratedVideos[0]; v != nil && v.Video != nil {
			out.VideoURI = v.Video.URI
		}
	}
	return out
}

// operationFailure - google.rpc.Status 형태의 에러 맵에서 메시지 추출
func operationFailure(status map[string]any) string {
	msg, _ := status["message"].(string)
	msg = strings.TrimSpace(msg)

	code, hasCode := status["code"]
	switch {
	case msg != "" && hasCode:
		return fmt.Sprintf("%s (code %v)", msg, code)
	case msg != "":
		return msg
	case hasCode:
		return fmt.Sprintf("video generation failed (code %v)", code)
	default:
		return "video generation failed"
	}
}
