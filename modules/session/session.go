package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"video-studio-server/modules/common/model"
	"video-studio-server/modules/generation"
	"video-studio-server/modules/media"
)

// Session - 한 사용자의 스튜디오: 컨트롤러 + 첨부 + 관전 클라이언트
type Session struct {
	id          string
	controller  *generation.Controller
	attachments *media.Attachments
	hub         *Hub
	metrics     *Metrics
	publish     func(model.StateSnapshot)
	createdAt   time.Time
	log         zerolog.Logger

	// 폼에 모델이 없을 때 사용 (VEO_MODEL)
	defaultModel string

	mu           sync.Mutex
	lastActivity time.Time
	prev         generation.State
	closed       bool

	// 컨트롤러 콜백은 락을 잡은 채 호출되므로 전송은 outbox 를 거쳐 순서대로
	outMu   sync.Mutex
	outbox  []model.StateSnapshot
	wake    chan struct{}
	done    chan struct{}
	drained chan struct{}

	unsubscribe func()
}

func newSession(id string, controller *generation.Controller, attachments *media.Attachments,
	metrics *Metrics, publish func(model.StateSnapshot), log zerolog.Logger) *Session {
	now := time.Now()
	s := &Session{
		id:           id,
		controller:   controller,
		attachments:  attachments,
		hub:          newHub(id, log),
		metrics:      metrics,
		publish:      publish,
		createdAt:    now,
		log:          log,
		lastActivity: now,
		prev:         controller.Snapshot(),
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		drained:      make(chan struct{}),
	}
	s.unsubscribe = controller.Subscribe(s.onState)
	go s.pump()
	return s
}

func (s *Session) ID() string                      { return s.id }
func (s *Session) Attachments() *media.Attachments { return s.attachments }
func (s *Session) CreatedAt() time.Time            { return s.createdAt }

// Generate - 폼과 현재 첨부로 요청을 만들어 백그라운드로 시작
// 검증 실패는 서비스 호출 없이 바로 반환
func (s *Session) Generate(form generation.Form) (model.StateSnapshot, error) {
	s.touch()
	if form.Model == "" {
		form.Model = s.defaultModel
	}

	img, _ := s.attachments.Image()
	req := generation.NewRequest(form, generation.ImageFromBlob(img), s.attachments.HasAudio())

	state, err := s.controller.Start(context.Background(), req)
	return s.snapshotOf(state), err
}

// State - 현재 스냅샷
func (s *Session) State() model.StateSnapshot {
	return s.snapshotOf(s.controller.Snapshot())
}

// View - REST 응답용
func (s *Session) View() model.SessionView {
	view := model.SessionView{
		SessionID: s.id,
		State:     s.State(),
		Clients:   s.hub.size(),
		CreatedAt: s.createdAt,
		Options:   StudioOptions(),
	}
	if h, ok := s.attachments.ImageHandle(); ok {
		view.Image = attachmentView(h)
	}
	if h, ok := s.attachments.AudioHandle(); ok {
		view.Audio = attachmentView(h)
	}
	return view
}

func (s *Session) snapshotOf(st generation.State) model.StateSnapshot {
	return Snapshot(s.id, st, s.attachments.HasAudio())
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) Touch() { s.touch() }

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// idle - 클라이언트 없음 + 생성 중 아님 + ttl 경과
func (s *Session) idle(now time.Time, ttl time.Duration) bool {
	if s.hub.size() > 0 {
		return false
	}
	if s.controller.Snapshot().Status == generation.StatusInProgress {
		return false
	}
	return now.Sub(s.LastActivity()) > ttl
}

// onState - 컨트롤러 락 안에서 호출됨, 블록 금지
func (s *Session) onState(st generation.State) {
	s.mu.Lock()
	prev := s.prev
	s.prev = st
	s.lastActivity = time.Now()
	s.mu.Unlock()

	s.metrics.observe(prev, st)

	s.outMu.Lock()
	s.outbox = append(s.outbox, s.snapshotOf(st))
	s.outMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) pump() {
	defer close(s.drained)
	for {
		select {
		case <-s.wake:
			s.flush()
		case <-s.done:
			s.flush()
			return
		}
	}
}

func (s *Session) flush() {
	s.outMu.Lock()
	batch := s.outbox
	s.outbox = nil
	s.outMu.Unlock()

	for _, snap := range batch {
		s.hub.broadcast(stateMessage(snap))
		if s.publish != nil {
			s.publish(snap)
		}
	}
}

// close - 진행 중인 생성 포기, 모든 핸들 해제, 클라이언트 연결 종료
func (s *Session) close() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	s.mu.Unlock()

	s.unsubscribe()
	s.controller.Close()
	s.attachments.Close()

	close(s.done)
	<-s.drained
	s.hub.closeAll(Message{Type: MessageSessionClosed, SessionID: s.id})

	s.log.Info().Msg("🧹 Session closed")
	return true
}
