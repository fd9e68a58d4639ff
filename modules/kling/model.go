package kling

import (
	"encoding/base64"
	"fmt"
	"strings"

	"video-studio-server/modules/generation"
)

const (
	taskImage2Video = "image2video"
	taskText2Video  = "text2video"
)

// Kling 작업 상태
const (
	statusSubmitted  = "submitted"
	statusProcessing = "processing"
	statusSucceed    = "succeed"
	statusFailed     = "failed"
)

// createTaskRequest - image2video / text2video 공통 요청 본문
type createTaskRequest struct {
	ModelName   string `json:"model_name"`
	Prompt      string `json:"prompt"`
	Image       string `json:"image,omitempty"` // base64 (data: prefix 없음)
	Duration    string `json:"duration"`        // "5" | "10"
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// apiResponse - Kling 응답 envelope
type apiResponse struct {
	Code      int      `json:"code"`
	Message   string   `json:"message"`
	RequestID string   `json:"request_id"`
	Data      taskData `json:"data"`
}

type taskData struct {
	TaskID        string `json:"task_id"`
	TaskStatus    string `json:"task_status"`
	TaskStatusMsg string `json:"task_status_msg"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
	TaskResult    struct {
		Videos []videoResult `json:"videos"`
	} `json:"task_result"`
}

type videoResult struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Duration string `json:"duration"`
}

// taskRef - 상태 재조회에 필요한 정보
type taskRef struct {
	Kind   string
	TaskID string
}

func (t taskRef) name() string {
	return t.Kind + "/" + t.TaskID
}

func parseTaskName(name string) (taskRef, error) {
	kind, id, ok := strings.Cut(name, "/")
	if !ok || id == "" || (kind != taskImage2Video && kind != taskText2Video) {
		return taskRef{}, fmt.Errorf("invalid kling task name %q", name)
	}
	return taskRef{Kind: kind, TaskID: id}, nil
}

// clipDuration - Kling 은 5초 / 10초 클립만 지원
func clipDuration(seconds int) string {
	if seconds > 5 {
		return "10"
	}
	return "5"
}

func newTaskRequest(req *generation.GenerationRequest) (string, createTaskRequest) {
	body := createTaskRequest{
		ModelName:   req.Model(),
		Prompt:      req.ComposedPrompt(),
		Duration:    clipDuration(req.DurationSeconds()),
		AspectRatio: req.AspectRatio(),
	}
	if img, ok := req.Image(); ok {
		body.Image = base64.StdEncoding.EncodeToString(img.Data)
		// image2video 는 입력 이미지 비율을 따름
		body.AspectRatio = ""
		return taskImage2Video, body
	}
	return taskText2Video, body
}

// toOperation - Kling 작업 상태를 generation.Operation 으로 변환
func toOperation(kind string, data taskData) *generation.Operation {
	ref := taskRef{Kind: kind, TaskID: data.TaskID}
	op := &generation.Operation{Name: ref.name(), Native: ref}

	switch data.TaskStatus {
	case statusSucceed:
		op.Done = true
		if len(data.TaskResult.Videos) > 0 {
			op.VideoURI = data.TaskResult.Videos[0].URL
		}
	case statusFailed:
		op.Done = true
		op.Failure = data.TaskStatusMsg
		if op.Failure == "" {
			op.Failure = "kling task failed"
		}
	}
	return op
}
