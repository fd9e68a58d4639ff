package model

import "time"

// 생성 상태 (generation.Status 와 동일한 문자열)
const (
	StatusIdle       = "idle"
	StatusInProgress = "in_progress"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
)

// StateSnapshot - WebSocket / Redis / REST 로 내보내는 상태 스냅샷
type StateSnapshot struct {
	SessionID   string       `json:"sessionId"`
	Token       uint64       `json:"token"`
	Status      string       `json:"status"`
	Phrase      string       `json:"phrase,omitempty"`
	PhraseIndex int          `json:"phraseIndex"`
	Result      *VideoResult `json:"result,omitempty"`
	ErrorKind   string       `json:"errorKind,omitempty"`
	Error       string       `json:"error,omitempty"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// VideoResult - 재생/다운로드용 결과
type VideoResult struct {
	Handle      string `json:"handle"`
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl"`
	MimeType    string `json:"mimeType"`
	Size        int    `json:"size"`
	Muted       bool   `json:"muted"` // 오디오 첨부가 있으면 영상은 음소거 재생
}

// Attachment - 세션에 붙은 이미지/오디오
type Attachment struct {
	Handle   string `json:"handle"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
	URL      string `json:"url"`
}

// SessionView - GET /api/sessions/{id} 응답
type SessionView struct {
	SessionID string         `json:"sessionId"`
	State     StateSnapshot  `json:"state"`
	Image     *Attachment    `json:"image,omitempty"`
	Audio     *Attachment    `json:"audio,omitempty"`
	Clients   int            `json:"clients"`
	CreatedAt time.Time      `json:"createdAt"`
	Options   *StudioOptions `json:"options,omitempty"`
}

// StudioOptions - UI 선택지
type StudioOptions struct {
	Styles       []string `json:"styles"`
	Voices       []string `json:"voices"`
	AspectRatios []string `json:"aspectRatios"`
	MinDuration  int      `json:"minDuration"`
	MaxDuration  int      `json:"maxDuration"`
}

// Envelope - Redis 채널로 보내는 메시지 (origin 으로 자기 메시지 무시)
type Envelope struct {
	Origin   string        `json:"origin"`
	Snapshot StateSnapshot `json:"snapshot"`
}
