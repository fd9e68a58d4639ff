package studio

import (
	"video-studio-server/modules/common/fallback"
	"video-studio-server/modules/common/model"
	"video-studio-server/modules/generation"
)

// GenerateRequest - POST /api/sessions/{id}/generate 본문
type GenerateRequest struct {
	Prompt      string `json:"prompt"`
	Style       string `json:"style"`
	Voice       string `json:"voice"`
	AspectRatio string `json:"aspectRatio"`
	Duration    any    `json:"duration"`   // 숫자 또는 "15" 같은 문자열
	LengthType  string `json:"lengthType"` // "short" | "long"
	Model       string `json:"model,omitempty"`
}

func (r GenerateRequest) form() generation.Form {
	return generation.Form{
		Prompt:      r.Prompt,
		Style:       r.Style,
		Voice:       r.Voice,
		AspectRatio: r.AspectRatio,
		Duration:    fallback.SafeInt(r.Duration, 0),
		LengthType:  generation.LengthType(r.LengthType),
		Model:       r.Model,
	}
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type SessionResponse struct {
	Success   bool                 `json:"success"`
	SessionID string               `json:"sessionId"`
	Session   *model.SessionView   `json:"session,omitempty"`
	State     *model.StateSnapshot `json:"state,omitempty"`
}

type AttachmentResponse struct {
	Success    bool              `json:"success"`
	Attachment *model.Attachment `json:"attachment,omitempty"`
	Removed    bool              `json:"removed,omitempty"`
}

type GenerateResponse struct {
	Success bool                `json:"success"`
	Token   uint64              `json:"token"`
	State   model.StateSnapshot `json:"state"`
	Error   string              `json:"error,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Redis   string `json:"redis"`
}
