package generation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"video-studio-server/modules/common/logger"
	"video-studio-server/modules/media"
)

// fakeService - 스크립트된 VideoService
// GenerateVideos 는 initial, GetOperation 은 polls 를 순서대로 (마지막 값 반복)
type fakeService struct {
	mu        sync.Mutex
	initial   *Operation
	submitErr error
	polls     []*Operation
	pollErr   error
	video     []byte
	fetchErr  error

	// 설정되면 close 되거나 ctx 종료까지 GenerateVideos 대기
	gate chan struct{}

	submitCalls atomic.Int32
	pollCalls   atomic.Int32
	fetchCalls  atomic.Int32
	fetchedURIs []string
}

func (f *fakeService) GenerateVideos(ctx context.Context, req *GenerationRequest) (*Operation, error) {
	f.submitCalls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	op := *f.initial
	return &op, nil
}

func (f *fakeService) GetOperation(ctx context.Context, op *Operation) (*Operation, error) {
	f.pollCalls.Add(1)
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.polls) == 0 {
		return op, nil
	}
	next := f.polls[0]
	if len(f.polls) > 1 {
		f.polls = f.polls[1:]
	}
	cp := *next
	return &cp, nil
}

func (f *fakeService) FetchVideo(ctx context.Context, uri string) ([]byte, string, error) {
	f.fetchCalls.Add(1)
	f.mu.Lock()
	f.fetchedURIs = append(f.fetchedURIs, uri)
	f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, "", f.fetchErr
	}
	return f.video, "video/mp4", nil
}

func doneOp(uri string) *Operation {
	return &Operation{Name: "operations/done", Done: true, VideoURI: uri}
}

func pendingOp() *Operation {
	return &Operation{Name: "operations/pending"}
}

var errBoom = errors.New("boom")

func newTestStore() *media.Store {
	return media.NewStore(time.Hour, logger.Discard())
}

func fastOptions() Options {
	return Options{
		PollInterval:   time.Millisecond,
		PhraseInterval: time.Hour,
	}
}

func textRequest(prompt string) *GenerationRequest {
	return NewRequest(Form{Prompt: prompt}, nil, false)
}
