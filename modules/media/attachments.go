package media

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrEmptyFile        = errors.New("file is empty")
	ErrUnsupportedMedia = errors.New("unsupported media type")
)

// Attachments - 이미지 0..1개, 오디오 0..1개
// 교체/삭제 시 이전 핸들 해제
type Attachments struct {
	store *Store

	mu    sync.Mutex
	image *Handle
	audio *Handle
}

func NewAttachments(store *Store) *Attachments {
	return &Attachments{store: store}
}

// AttachImage - image/* 저장, 기존 이미지는 교체
func (a *Attachments) AttachImage(name, mimeType string, data []byte) (Handle, error) {
	return a.attach(KindImage, name, mimeType, data)
}

// AttachAudio - audio/* 저장, 기존 오디오는 교체
func (a *Attachments) AttachAudio(name, mimeType string, data []byte) (Handle, error) {
	return a.attach(KindAudio, name, mimeType, data)
}

func (a *Attachments) attach(kind Kind, name, mimeType string, data []byte) (Handle, error) {
	if len(data) == 0 {
		return Handle{}, ErrEmptyFile
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if !strings.HasPrefix(mimeType, string(kind)+"/") {
		return Handle{}, fmt.Errorf("%w: %q is not %s/*", ErrUnsupportedMedia, mimeType, kind)
	}

	h := a.store.Put(kind, name, mimeType, data)
	if !a.store.Claim(h.ID) {
		return Handle{}, fmt.Errorf("%s %q expired before it was attached", kind, name)
	}

	a.mu.Lock()
	slot := a.slot(kind)
	prev := *slot
	*slot = &h
	a.mu.Unlock()

	if prev != nil {
		a.store.Release(prev.ID)
	}
	return h, nil
}

func (a *Attachments) RemoveImage() bool { return a.remove(KindImage) }
func (a *Attachments) RemoveAudio() bool { return a.remove(KindAudio) }

func (a *Attachments) remove(kind Kind) bool {
	a.mu.Lock()
	slot := a.slot(kind)
	prev := *slot
	*slot = nil
	a.mu.Unlock()

	if prev == nil {
		return false
	}
	a.store.Release(prev.ID)
	return true
}

func (a *Attachments) slot(kind Kind) **Handle {
	if kind == KindImage {
		return &a.image
	}
	return &a.audio
}

// Image - 첨부된 이미지 blob
func (a *Attachments) Image() (*Blob, bool) {
	a.mu.Lock()
	h := a.image
	a.mu.Unlock()
	if h == nil {
		return nil, false
	}
	return a.store.Get(h.ID)
}

// ImageHandle / AudioHandle - 화면 표시용 현재 핸들
func (a *Attachments) ImageHandle() (Handle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.image == nil {
		return Handle{}, false
	}
	return *a.image, true
}

func (a *Attachments) AudioHandle() (Handle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.audio == nil {
		return Handle{}, false
	}
	return *a.audio, true
}

func (a *Attachments) HasAudio() bool {
	_, ok := a.AudioHandle()
	return ok
}

// Close - 두 슬롯 모두 해제
func (a *Attachments) Close() {
	a.RemoveImage()
	a.RemoveAudio()
}
