package generation

import (
	"fmt"
	"strings"

	"video-studio-server/modules/common/fallback"
	"video-studio-server/modules/media"
)

type LengthType string

const (
	LengthShort LengthType = "short"
	LengthLong  LengthType = "long"
)

const (
	MinDuration     = 1
	MaxDuration     = 60
	DefaultDuration = 15
	DefaultModel    = "veo-2.0-generate-001"
)

var (
	Styles       = []string{"cinematic", "comedy", "educational", "documentary", "advertising"}
	Voices       = []string{"Modern Standard Arabic", "Saudi", "Egyptian", "Levantine"}
	AspectRatios = []string{"16:9", "9:16", "1:1"}
)

// Form - UI 에서 받은 원본 입력
type Form struct {
	Prompt      string
	Style       string
	Voice       string
	AspectRatio string
	Duration    int
	LengthType  LengthType
	Model       string
}

type ImagePayload struct {
	Data     []byte
	MimeType string
}

// ImageFromBlob - 첨부 이미지를 요청 payload 로 변환
func ImageFromBlob(blob *media.Blob) *ImagePayload {
	if blob == nil || len(blob.Data) == 0 {
		return nil
	}
	return &ImagePayload{Data: blob.Data, MimeType: blob.MimeType}
}

// GenerationRequest - 요청마다 새로 만들고 이후 변경 없음
type GenerationRequest struct {
	prompt      string
	image       *ImagePayload
	duration    int
	style       string
	voice       string
	aspectRatio string
	silent      bool
	length      LengthType
	model       string
}

// NewRequest - 폼 값 정규화
// long 은 항상 MaxDuration 초, 오디오 첨부가 있으면 silent
func NewRequest(form Form, image *ImagePayload, hasAudio bool) *GenerationRequest {
	length := form.LengthType
	if length != LengthLong {
		length = LengthShort
	}

	duration := form.Duration
	if duration == 0 {
		duration = DefaultDuration
	}
	duration = fallback.ClampInt(duration, MinDuration, MaxDuration)
	if length == LengthLong {
		duration = MaxDuration
	}

	var img *ImagePayload
	if image != nil && len(image.Data) > 0 {
		img = &ImagePayload{Data: image.Data, MimeType: image.MimeType}
	}

	return &GenerationRequest{
		prompt:      form.Prompt,
		image:       img,
		duration:    duration,
		style:       fallback.OneOf(form.Style, Styles, Styles[0]),
		voice:       fallback.OneOf(form.Voice, Voices, Voices[0]),
		aspectRatio: fallback.SafeAspectRatio(form.AspectRatio, AspectRatios),
		silent:      hasAudio,
		length:      length,
		model:       fallback.SafeString(form.Model, DefaultModel),
	}
}

func (r *GenerationRequest) Prompt() string         { return r.prompt }
func (r *GenerationRequest) DurationSeconds() int   { return r.duration }
func (r *GenerationRequest) Style() string          { return r.style }
func (r *GenerationRequest) Voice() string          { return r.voice }
func (r *GenerationRequest) AspectRatio() string    { return r.aspectRatio }
func (r *GenerationRequest) Silent() bool           { return r.silent }
func (r *GenerationRequest) LengthType() LengthType { return r.length }
func (r *GenerationRequest) Model() string          { return r.model }
func (r *GenerationRequest) HasImage() bool         { return r.image != nil }

// Image - payload 복사본 (바이트는 공유)
func (r *GenerationRequest) Image() (ImagePayload, bool) {
	if r.image == nil {
		return ImagePayload{}, false
	}
	return *r.image, true
}

// Validate - 프롬프트나 이미지 중 하나는 필요
func (r *GenerationRequest) Validate() error {
	if strings.TrimSpace(r.prompt) == "" && r.image == nil {
		return validationError()
	}
	return nil
}

// ComposedPrompt - 모델에 보내는 전체 프롬프트
func (r *GenerationRequest) ComposedPrompt() string {
	var b strings.Builder

	if r.image != nil {
		b.WriteString("Based on the attached image, ")
	}
	if r.silent {
		b.WriteString("create a silent video to match the attached audio. ")
	}

	if r.length == LengthLong {
		b.WriteString("Create a long, detailed video")
	} else {
		b.WriteString("Create a short video")
	}
	fmt.Fprintf(&b, " in a %s style", r.style)
	if !r.silent {
		fmt.Fprintf(&b, " with a voiceover in the %s dialect", r.voice)
	}
	fmt.Fprintf(&b, " lasting %d seconds. Script: %q", r.duration, r.prompt)

	return b.String()
}
