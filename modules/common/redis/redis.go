package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"video-studio-server/modules/common/config"
	"video-studio-server/modules/common/model"
)

const channelPrefix = "studio:session:"

// Connect - Redis 연결 생성
func Connect(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	log.Info().Str("addr", cfg.GetRedisAddr()).Msg("🔌 Connecting to Redis")

	// TLS 설정
	var tlsConfig *tls.Config
	if cfg.RedisUseTLS {
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		TLSConfig:    tlsConfig,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// 연결 테스트
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info().Msg("✅ Redis connected")
	return rdb, nil
}

// Channel - 세션별 채널 이름
func Channel(sessionID string) string {
	return channelPrefix + sessionID
}

// SessionFromChannel - 채널 이름에서 세션 ID 추출
func SessionFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, channelPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(channel, channelPrefix)
	return id, id != ""
}

// EncodeEnvelope / DecodeEnvelope - 채널 메시지 직렬화
func EncodeEnvelope(origin string, snapshot model.StateSnapshot) ([]byte, error) {
	return json.Marshal(model.Envelope{Origin: origin, Snapshot: snapshot})
}

func DecodeEnvelope(payload string) (model.Envelope, error) {
	var env model.Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return env, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return env, nil
}

// Fanout - 다른 인스턴스로 상태 스냅샷 전파 (저장하지 않음, PUBLISH 전용)
type Fanout struct {
	rdb    *redis.Client
	origin string
	log    zerolog.Logger
}

func NewFanout(rdb *redis.Client, origin string, log zerolog.Logger) *Fanout {
	return &Fanout{rdb: rdb, origin: origin, log: log}
}

// Publish - 스냅샷 PUBLISH
func (f *Fanout) Publish(ctx context.Context, snapshot model.StateSnapshot) error {
	payload, err := EncodeEnvelope(f.origin, snapshot)
	if err != nil {
		return err
	}
	if err := f.rdb.Publish(ctx, Channel(snapshot.SessionID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// Relay - 다른 인스턴스가 보낸 스냅샷을 deliver 로 전달
// ctx 가 끝날 때까지 블록
func (f *Fanout) Relay(ctx context.Context, deliver func(model.StateSnapshot)) error {
	sub := f.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	f.log.Info().Str("pattern", channelPrefix+"*").Msg("👀 Relaying session snapshots")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, ok := SessionFromChannel(msg.Channel); !ok {
				continue
			}
			env, err := DecodeEnvelope(msg.Payload)
			if err != nil {
				f.log.Warn().Err(err).Str("channel", msg.Channel).Msg("⚠️ Dropping malformed snapshot")
				continue
			}
			if env.Origin == f.origin {
				continue
			}
			deliver(env.Snapshot)
		}
	}
}
