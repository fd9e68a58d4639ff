package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-studio-server/modules/common/logger"
	"video-studio-server/modules/common/model"
	"video-studio-server/modules/generation"
	"video-studio-server/modules/media"
)

type stubService struct {
	mu      sync.Mutex
	prompts []string
	models  []string
	gate    chan struct{}
}

func (s *stubService) GenerateVideos(ctx context.Context, req *generation.GenerationRequest) (*generation.Operation, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, req.ComposedPrompt())
	s.models = append(s.models, req.Model())
	s.mu.Unlock()
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &generation.Operation{Name: "op", Done: true, VideoURI: "https://v/1"}, nil
}

func (s *stubService) GetOperation(ctx context.Context, op *generation.Operation) (*generation.Operation, error) {
	return op, nil
}

func (s *stubService) FetchVideo(ctx context.Context, uri string) ([]byte, string, error) {
	return []byte("mp4"), "video/mp4", nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []model.StateSnapshot
}

func (p *recordingPublisher) Publish(ctx context.Context, snap model.StateSnapshot) error {
	p.mu.Lock()
	p.snaps = append(p.snaps, snap)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) statuses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.snaps))
	for _, s := range p.snaps {
		out = append(out, s.Status)
	}
	return out
}

func newTestManager(svc generation.VideoService, pub Publisher) (*Manager, *media.Store) {
	store := media.NewStore(time.Hour, logger.Discard())
	opts := Options{
		Generation:   generation.Options{PollInterval: time.Millisecond, PhraseInterval: time.Hour},
		DefaultModel: "veo-default",
		IdleTTL:      time.Minute,
	}
	if pub != nil {
		opts.Publisher = pub
	}
	return NewManager(svc, store, opts, logger.Discard()), store
}

func readMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		require.True(t, ok, "client channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message for client")
		return Message{}
	}
}

func TestGenerateSucceedsAndUsesDefaultModel(t *testing.T) {
	svc := &stubService{}
	m, store := newTestManager(svc, nil)
	s := m.Create()

	snap, err := s.Generate(generation.Form{Prompt: "a boat"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, snap.Status)
	assert.Equal(t, s.ID(), snap.SessionID)

	require.Eventually(t, func() bool { return s.State().Status == model.StatusSucceeded }, time.Second, time.Millisecond)

	state := s.State()
	require.NotNil(t, state.Result)
	assert.Equal(t, "/media/"+state.Result.Handle, state.Result.URL)
	assert.Equal(t, 1, store.Live())

	svc.mu.Lock()
	assert.Equal(t, []string{"veo-default"}, svc.models)
	svc.mu.Unlock()
}

func TestGenerateValidationFailure(t *testing.T) {
	svc := &stubService{}
	m, _ := newTestManager(svc, nil)
	s := m.Create()

	snap, err := s.Generate(generation.Form{Prompt: "   "})

	assert.ErrorIs(t, err, generation.ErrValidation)
	assert.Equal(t, model.StatusFailed, snap.Status)
	assert.Equal(t, generation.MessageValidation, snap.Error)
	assert.Empty(t, svc.prompts)
}

func TestGenerateUsesAttachments(t *testing.T) {
	svc := &stubService{}
	m, _ := newTestManager(svc, nil)
	s := m.Create()

	_, err := s.Attachments().AttachImage("a.png", "image/png", []byte("png"))
	require.NoError(t, err)
	_, err = s.Attachments().AttachAudio("a.mp3", "audio/mpeg", []byte("mp3"))
	require.NoError(t, err)

	_, err = s.Generate(generation.Form{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.State().Status == model.StatusSucceeded }, time.Second, time.Millisecond)

	svc.mu.Lock()
	prompt := svc.prompts[0]
	svc.mu.Unlock()
	assert.Contains(t, prompt, "Based on the attached image")
	assert.Contains(t, prompt, "silent video")
	assert.True(t, s.State().Result.Muted)

	view := s.View()
	require.NotNil(t, view.Image)
	require.NotNil(t, view.Audio)
	assert.Equal(t, "image", view.Image.Kind)
	assert.NotNil(t, view.Options)
}

func TestSnapshotsReachClientsAndPublisherInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	m, _ := newTestManager(&stubService{}, pub)
	s := m.Create()

	client := newClient("c1", s.ID(), nil, logger.Discard())
	s.hub.add(client)

	_, err := s.Generate(generation.Form{Prompt: "x"})
	require.NoError(t, err)

	first := readMessage(t, client)
	assert.Equal(t, MessageState, first.Type)
	require.NotNil(t, first.State)
	assert.Equal(t, model.StatusInProgress, first.State.Status)

	second := readMessage(t, client)
	assert.Equal(t, model.StatusSucceeded, second.State.Status)

	require.Eventually(t, func() bool { return len(pub.statuses()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{model.StatusInProgress, model.StatusSucceeded}, pub.statuses())
}

func TestCloseReleasesEverythingAndNotifiesClients(t *testing.T) {
	m, store := newTestManager(&stubService{}, nil)
	s := m.Create()

	_, err := s.Attachments().AttachImage("a.png", "image/png", []byte("png"))
	require.NoError(t, err)
	_, err = s.Generate(generation.Form{Prompt: "x"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.State().Status == model.StatusSucceeded }, time.Second, time.Millisecond)
	require.Equal(t, 2, store.Live())

	client := newClient("c1", s.ID(), nil, logger.Discard())
	s.hub.add(client)

	assert.True(t, m.Close(s.ID()))
	assert.False(t, m.Close(s.ID()))

	_, ok := m.Get(s.ID())
	assert.False(t, ok)
	assert.Equal(t, 0, store.Live())
	for msg := readMessage(t, client); msg.Type != MessageSessionClosed; msg = readMessage(t, client) {
		assert.Equal(t, MessageState, msg.Type)
	}

	_, open := <-client.send
	assert.False(t, open)
	assert.Equal(t, 0, m.Metrics().ActiveSessions)
}

func TestCloseAbandonsInFlightGeneration(t *testing.T) {
	svc := &stubService{gate: make(chan struct{})}
	m, store := newTestManager(svc, nil)
	s := m.Create()

	_, err := s.Generate(generation.Form{Prompt: "x"})
	require.NoError(t, err)

	m.Close(s.ID())
	close(svc.gate)

	require.Never(t, func() bool { return store.Live() > 0 }, 50*time.Millisecond, time.Millisecond)
}

func TestCleanupIdle(t *testing.T) {
	m, _ := newTestManager(&stubService{}, nil)

	idle := m.Create()
	watched := m.Create()
	fresh := m.Create()

	past := time.Now().Add(-time.Hour)
	idle.mu.Lock()
	idle.lastActivity = past
	idle.mu.Unlock()
	watched.mu.Lock()
	watched.lastActivity = past
	watched.mu.Unlock()
	watched.hub.add(newClient("c", watched.ID(), nil, logger.Discard()))

	assert.Equal(t, 1, m.CleanupIdle(time.Now()))

	_, ok := m.Get(idle.ID())
	assert.False(t, ok)
	_, ok = m.Get(watched.ID())
	assert.True(t, ok)
	_, ok = m.Get(fresh.ID())
	assert.True(t, ok)
}

func TestRunCleanupRejectsBadSchedule(t *testing.T) {
	m, _ := newTestManager(&stubService{}, nil)
	err := m.RunCleanup(context.Background(), "not a schedule")
	assert.Error(t, err)
}

func TestRunCleanupStopsWithContext(t *testing.T) {
	m, _ := newTestManager(&stubService{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.RunCleanup(ctx, "@every 1h") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("cleanup did not stop")
	}
}

func TestDeliverReachesRemoteWatchers(t *testing.T) {
	m, _ := newTestManager(&stubService{}, &recordingPublisher{})

	// 아직 watcher 없음: 버려짐
	m.Deliver(model.StateSnapshot{SessionID: "remote-1", Status: model.StatusInProgress})

	client := newClient("c1", "remote-1", nil, logger.Discard())
	hub, initial, ok := m.attach("remote-1", client)
	require.True(t, ok)
	assert.Nil(t, initial)

	m.Deliver(model.StateSnapshot{SessionID: "remote-1", Token: 3, Status: model.StatusSucceeded})
	msg := readMessage(t, client)
	require.NotNil(t, msg.State)
	assert.Equal(t, uint64(3), msg.State.Token)

	// 늦게 붙은 watcher 는 마지막 스냅샷을 받음
	late := newClient("c2", "remote-1", nil, logger.Discard())
	_, initial, ok = m.attach("remote-1", late)
	require.True(t, ok)
	require.NotNil(t, initial)
	assert.Equal(t, uint64(3), initial.Token)

	m.detach(hub, client)
	m.detach(hub, late)
	m.mu.RLock()
	_, exists := m.remote["remote-1"]
	m.mu.RUnlock()
	assert.False(t, exists)
	assert.Equal(t, 1, m.Metrics().Relayed)
}

func TestAttachUnknownSessionWithoutRelay(t *testing.T) {
	m, _ := newTestManager(&stubService{}, nil)
	_, _, ok := m.attach("nope", newClient("c", "nope", nil, logger.Discard()))
	assert.False(t, ok)
}

func TestHandleMessage(t *testing.T) {
	m, _ := newTestManager(&stubService{}, nil)
	s := m.Create()
	client := newClient("c1", s.ID(), nil, logger.Discard())

	m.handleMessage(client, Message{Type: MessagePing})
	assert.Equal(t, MessagePong, readMessage(t, client).Type)

	m.handleMessage(client, Message{Type: MessageRequestState})
	msg := readMessage(t, client)
	assert.Equal(t, MessageState, msg.Type)
	require.NotNil(t, msg.State)
	assert.Equal(t, model.StatusIdle, msg.State.Status)
}

func TestMetricsCountTransitions(t *testing.T) {
	m, _ := newTestManager(&stubService{}, nil)
	s := m.Create()

	_, err := s.Generate(generation.Form{Prompt: "x"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return m.Metrics().Succeeded == 1 }, time.Second, time.Millisecond)

	_, _ = s.Generate(generation.Form{})
	require.Eventually(t, func() bool { return m.Metrics().Failed == 1 }, time.Second, time.Millisecond)

	view := m.Metrics()
	assert.Equal(t, 1, view.Submissions)
	assert.Equal(t, 1, view.TotalSessions)
	assert.Equal(t, 1, view.ActiveSessions)
	assert.Equal(t, 0, view.LiveMedia)
	assert.Equal(t, 1, view.ReleasedMedia)
}
