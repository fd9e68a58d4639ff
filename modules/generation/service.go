package generation

import (
	"context"

	"video-studio-server/modules/media"
)

// Operation - 서비스 쪽 생성 작업 핸들
type Operation struct {
	Name     string
	Done     bool
	VideoURI string
	// 서비스가 에러로 작업을 끝낸 경우
	Failure string
	// 어댑터가 재조회에 쓰는 원본 값
	Native any
}

// VideoService - 외부 영상 생성 백엔드 (Veo / Kling)
type VideoService interface {
	GenerateVideos(ctx context.Context, req *GenerationRequest) (*Operation, error)
	GetOperation(ctx context.Context, op *Operation) (*Operation, error)
	// 완료된 영상을 서비스 인증 정보로 다운로드
	FetchVideo(ctx context.Context, uri string) (data []byte, mimeType string, err error)
}

// ResultStore - 해제 전까지 결과 영상을 주소로 접근 가능하게 보관
type ResultStore interface {
	Put(kind media.Kind, name, mimeType string, data []byte) media.Handle
	// Release 전까지 만료되지 않게 고정, 이미 없으면 false
	Claim(id string) bool
	Release(id string)
}
