package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"video-studio-server/modules/common/model"
	"video-studio-server/modules/generation"
	"video-studio-server/modules/media"
)

var ErrSessionNotFound = errors.New("session not found")

// Publisher - 다른 인스턴스로 스냅샷 전파 (redis.Fanout)
type Publisher interface {
	Publish(ctx context.Context, snapshot model.StateSnapshot) error
}

type Options struct {
	Generation   generation.Options
	DefaultModel string
	IdleTTL      time.Duration
	// nil 이면 단일 인스턴스 모드
	Publisher Publisher
}

// 세션 매니저
type Manager struct {
	service generation.VideoService
	store   *media.Store
	opts    Options
	metrics *Metrics
	log     zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	// 다른 인스턴스 소유 세션을 보고 있는 클라이언트
	remote map[string]*Hub
}

func NewManager(service generation.VideoService, store *media.Store, opts Options, log zerolog.Logger) *Manager {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 2 * time.Hour
	}
	return &Manager{
		service:  service,
		store:    store,
		opts:     opts,
		metrics:  newMetrics(),
		log:      log,
		sessions: make(map[string]*Session),
		remote:   make(map[string]*Hub),
	}
}

// Create - 새 세션 생성
func (m *Manager) Create() *Session {
	id := uuid.NewString()
	log := m.log.With().Str("session", id).Logger()

	controller := generation.NewController(m.service, m.store, m.opts.Generation, log)
	s := newSession(id, controller, media.NewAttachments(m.store), m.metrics, m.publisher(log), log)
	s.defaultModel = m.opts.DefaultModel

	m.mu.Lock()
	m.sessions[id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.metrics.sessionOpened()
	log.Info().Int("active", count).Msg("✅ Created new session")
	return s
}

func (m *Manager) publisher(log zerolog.Logger) func(model.StateSnapshot) {
	if m.opts.Publisher == nil {
		return nil
	}
	return func(snap model.StateSnapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.opts.Publisher.Publish(ctx, snap); err != nil {
			log.Warn().Err(err).Msg("⚠️ Failed to publish snapshot")
		}
	}
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close - 세션 종료, 모든 핸들 해제
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	if s.close() {
		m.metrics.sessionClosed()
	}
	return true
}

// CloseAll - 종료 시 전체 정리
func (m *Manager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Close(id)
	}
}

// CleanupIdle - 비활성 세션 정리, 정리한 수 반환
func (m *Manager) CleanupIdle(now time.Time) int {
	m.mu.RLock()
	var idle []string
	for id, s := range m.sessions {
		if s.idle(now, m.opts.IdleTTL) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range idle {
		m.Close(id)
	}
	if len(idle) > 0 {
		m.log.Info().Int("cleaned", len(idle)).Int("active", m.Len()).Msg("🧼 Cleaned up inactive sessions")
	}
	return len(idle)
}

// RunCleanup - cron 스케줄로 CleanupIdle 실행, ctx 종료까지 블록
func (m *Manager) RunCleanup(ctx context.Context, schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { m.CleanupIdle(time.Now()) }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}

	c.Start()
	m.log.Info().Str("schedule", schedule).Dur("idleTTL", m.opts.IdleTTL).Msg("🔄 Started session cleanup")

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CanWatch - 로컬 세션이거나 릴레이가 켜져 있으면 구독 가능
func (m *Manager) CanWatch(sessionID string) bool {
	if sessionID == "" {
		return false
	}
	if _, ok := m.Get(sessionID); ok {
		return true
	}
	return m.opts.Publisher != nil
}

// Connect - WebSocket 클라이언트를 세션에 연결하고 펌프 시작
// 로컬 세션이면 현재 상태를 바로 보내고, 릴레이가 켜져 있으면 원격 세션도 구독 가능
func (m *Manager) Connect(sessionID string, conn *websocket.Conn) error {
	client := newClient(uuid.NewString(), sessionID, conn, m.log.With().Str("session", sessionID).Logger())

	hub, initial, ok := m.attach(sessionID, client)
	if !ok {
		return ErrSessionNotFound
	}
	m.metrics.connected()

	if initial != nil {
		client.sendMessage(stateMessage(*initial))
	}

	go client.writePump()
	go client.readPump(m.handleMessage, func(c *Client) { m.detach(hub, c) })
	return nil
}

func (m *Manager) attach(sessionID string, client *Client) (*Hub, *model.StateSnapshot, bool) {
	if s, ok := m.Get(sessionID); ok {
		count := s.hub.add(client)
		s.touch()
		snap := s.State()
		client.log.Info().Int("clients", count).Msg("👤 Client joined session")
		return s.hub, &snap, true
	}

	if m.opts.Publisher == nil {
		return nil, nil, false
	}

	m.mu.Lock()
	hub, ok := m.remote[sessionID]
	if !ok {
		hub = newHub(sessionID, m.log.With().Str("session", sessionID).Logger())
		m.remote[sessionID] = hub
	}
	hub.add(client)
	m.mu.Unlock()

	client.log.Info().Msg("👤 Client watching remote session")
	if snap, ok := hub.lastSnapshot(); ok {
		return hub, &snap, true
	}
	return hub, nil, true
}

func (m *Manager) detach(hub *Hub, c *Client) {
	remaining := hub.remove(c.id)
	c.log.Info().Int("remaining", remaining).Msg("👋 Client left session")
	if remaining > 0 {
		return
	}

	m.mu.Lock()
	if m.remote[hub.sessionID] == hub && hub.size() == 0 {
		delete(m.remote, hub.sessionID)
	}
	m.mu.Unlock()
}

func (m *Manager) handleMessage(c *Client, msg Message) {
	switch msg.Type {
	case MessageRequestState:
		if s, ok := m.Get(c.sessionID); ok {
			s.touch()
			c.sendMessage(stateMessage(s.State()))
			return
		}
		m.mu.RLock()
		hub := m.remote[c.sessionID]
		m.mu.RUnlock()
		if hub != nil {
			if snap, ok := hub.lastSnapshot(); ok {
				c.sendMessage(stateMessage(snap))
			}
		}
	case MessagePing:
		c.sendMessage(Message{Type: MessagePong, SessionID: c.sessionID})
	}
}

// Deliver - 다른 인스턴스에서 릴레이된 스냅샷을 로컬 관전자에게 전달
func (m *Manager) Deliver(snapshot model.StateSnapshot) {
	m.mu.RLock()
	hub := m.remote[snapshot.SessionID]
	m.mu.RUnlock()

	if hub == nil {
		return
	}
	m.metrics.relayedSnapshot()
	hub.broadcast(stateMessage(snapshot))
}

// Metrics - 서버 + 미디어 스토어 메트릭
func (m *Manager) Metrics() MetricsView {
	view := m.metrics.view()

	m.mu.RLock()
	for _, s := range m.sessions {
		view.CurrentClients += s.hub.size()
	}
	for _, h := range m.remote {
		view.CurrentClients += h.size()
	}
	m.mu.RUnlock()

	view.LiveMedia = m.store.Live()
	view.ReleasedMedia = m.store.Released()
	return view
}
