package generation

import (
	"time"

	"video-studio-server/modules/media"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Result - 미디어 스토어에 보관된 생성 영상
type Result struct {
	Handle   media.Handle
	URI      string
	MimeType string
	Size     int
}

// State - UI 가 보는 전체 상태의 불변 스냅샷. Reduce 로만 교체됨
type State struct {
	Token       uint64
	Status      Status
	Phrase      string
	PhraseIndex int
	Result      *Result
	ErrorKind   Kind
	Error       string
	UpdatedAt   time.Time
}

// Event - Token 으로 식별되는 요청이 만든 상태 전이
type Event interface {
	token() uint64
}

type (
	// 새 요청 시작. token 은 현재 것보다 커야 함
	Submitted struct{ Token uint64 }
	// 아무것도 보내기 전에 끝난 요청 (검증 실패)
	Rejected struct {
		Token uint64
		Err   *Error
	}
	PhraseAdvanced struct{ Token uint64 }
	Succeeded      struct {
		Token  uint64
		Result Result
	}
	Failed struct {
		Token uint64
		Err   *Error
	}
)

func (e Submitted) token() uint64      { return e.Token }
func (e Rejected) token() uint64       { return e.Token }
func (e PhraseAdvanced) token() uint64 { return e.Token }
func (e Succeeded) token() uint64      { return e.Token }
func (e Failed) token() uint64         { return e.Token }

// Reduce - ev 를 s 에 적용하고 반영 여부 반환
// 현재 요청이 아닌 token 의 이벤트, InProgress 밖의 진행 이벤트는 무시
func Reduce(s State, ev Event, phrases []string, now time.Time) (State, bool) {
	switch e := ev.(type) {
	case Submitted:
		if e.Token <= s.Token {
			return s, false
		}
		return State{
			Token:     e.Token,
			Status:    StatusInProgress,
			Phrase:    phraseAt(phrases, 0),
			UpdatedAt: now,
		}, true

	case Rejected:
		if e.Token <= s.Token {
			return s, false
		}
		return State{
			Token:     e.Token,
			Status:    StatusFailed,
			Phrase:    phraseAt(phrases, 0),
			ErrorKind: e.Err.Kind,
			Error:     e.Err.Message,
			UpdatedAt: now,
		}, true
	}

	if ev.token() != s.Token || s.Status != StatusInProgress {
		return s, false
	}

	next := s
	next.UpdatedAt = now

	switch e := ev.(type) {
	case PhraseAdvanced:
		if len(phrases) == 0 {
			return s, false
		}
		next.PhraseIndex = (s.PhraseIndex + 1) % len(phrases)
		next.Phrase = phrases[next.PhraseIndex]

	case Succeeded:
		result := e.Result
		next.Status = StatusSucceeded
		next.Result = &result
		next.PhraseIndex = 0
		next.Phrase = phraseAt(phrases, 0)

	case Failed:
		next.Status = StatusFailed
		next.ErrorKind = e.Err.Kind
		next.Error = e.Err.Message
		next.PhraseIndex = 0
		next.Phrase = phraseAt(phrases, 0)

	default:
		return s, false
	}

	return next, true
}

func phraseAt(phrases []string, i int) string {
	if i < 0 || i >= len(phrases) {
		return ""
	}
	return phrases[i]
}
