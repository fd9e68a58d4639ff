package fallback

import (
	"encoding/json"
	"strconv"
	"strings"
)

// SafeString - trim 한 문자열, 비어 있으면 fallback
func SafeString(value interface{}, fallback string) string {
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if s != "" {
			return s
		}
	}
	return fallback
}

// SafeInt - 숫자/문자열 등을 양의 int 로 변환, 실패 시 fallback
func SafeInt(value interface{}, fallback int) int {
	switch v := value.(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case float32:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	case json.Number:
		if n, err := strconv.Atoi(v.String()); err == nil && n > 0 {
			return n
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// ClampInt - n 을 [min, max] 로 제한
func ClampInt(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// OneOf - allowed 에 있으면 value, 아니면 fallback
func OneOf(value interface{}, allowed []string, fallback string) string {
	s := SafeString(value, "")
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	return fallback
}

// SafeAspectRatio - 허용되지 않은 비율이면 16:9
func SafeAspectRatio(value interface{}, allowed []string) string {
	return OneOf(value, allowed, "16:9")
}
