package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New - 서비스 로거 생성
// development 면 콘솔 출력 + debug 레벨, 아니면 JSON 라인
func New(development bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if development {
		level = zerolog.DebugLevel
	}

	l := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Logger()

	if development {
		l = l.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return l
}

// Module - module 필드가 붙은 하위 로거 (예: "Veo")
func Module(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("module", name).Logger()
}

// Discard - 테스트용 무출력 로거
func Discard() zerolog.Logger {
	return zerolog.New(io.Discard)
}
