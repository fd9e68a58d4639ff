package generation

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation  Kind = "validation"
	KindService     Kind = "service"
	KindEmptyResult Kind = "empty_result"
	KindFetch       Kind = "fetch"
)

const (
	MessageValidation  = "please enter a script or upload an image to generate a video"
	MessageEmptyResult = "service returned no video"
)

// Error - 한 요청의 실패. 모든 종류가 StatusFailed 로 끝나고 Message 가 화면 표시용 문구
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is - 같은 Kind 면 일치 (errors.Is(err, ErrFetch) 용)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation  = &Error{Kind: KindValidation, Message: MessageValidation}
	ErrService     = &Error{Kind: KindService}
	ErrEmptyResult = &Error{Kind: KindEmptyResult, Message: MessageEmptyResult}
	ErrFetch       = &Error{Kind: KindFetch}

	// 새 요청이 시작되어 관찰이 중단된 Submit 의 반환값
	ErrSuperseded = errors.New("generation superseded by a newer submission")
	ErrClosed     = errors.New("generation controller is closed")
)

func validationError() *Error {
	return &Error{Kind: KindValidation, Message: MessageValidation}
}

// serviceError - 서비스 에러 메시지를 그대로 노출
func serviceError(err error) *Error {
	return &Error{Kind: KindService, Message: err.Error(), Err: err}
}

func emptyResultError() *Error {
	return &Error{Kind: KindEmptyResult, Message: MessageEmptyResult}
}

func fetchError(err error) *Error {
	return &Error{Kind: KindFetch, Message: err.Error(), Err: err}
}

// asError - run 에서 나온 에러를 *Error 로 정규화
func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return serviceError(err)
}
