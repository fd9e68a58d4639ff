package session

import (
	"sync"
	"time"

	"video-studio-server/modules/generation"
)

// 서버 메트릭
type Metrics struct {
	mu               sync.Mutex
	startTime        time.Time
	totalSessions    int
	activeSessions   int
	totalConnections int
	submissions      int
	succeeded        int
	failed           int
	relayed          int
}

// MetricsView - GET /metrics 응답
type MetricsView struct {
	Uptime           string    `json:"uptime"`
	StartTime        time.Time `json:"startTime"`
	TotalSessions    int       `json:"totalSessions"`
	ActiveSessions   int       `json:"activeSessions"`
	TotalConnections int       `json:"totalConnections"`
	CurrentClients   int       `json:"currentClients"`
	Submissions      int       `json:"submissions"`
	Succeeded        int       `json:"succeeded"`
	Failed           int       `json:"failed"`
	Relayed          int       `json:"relayedSnapshots"`
	LiveMedia        int       `json:"liveMedia"`
	ReleasedMedia    int       `json:"releasedMedia"`
}

func newMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) sessionOpened() {
	m.mu.Lock()
	m.totalSessions++
	m.activeSessions++
	m.mu.Unlock()
}

func (m *Metrics) sessionClosed() {
	m.mu.Lock()
	m.activeSessions--
	m.mu.Unlock()
}

func (m *Metrics) connected() {
	m.mu.Lock()
	m.totalConnections++
	m.mu.Unlock()
}

func (m *Metrics) relayedSnapshot() {
	m.mu.Lock()
	m.relayed++
	m.mu.Unlock()
}

// observe - 상태 전이 집계 (진입 시점만 카운트)
func (m *Metrics) observe(prev, next generation.State) {
	if prev.Token == next.Token && prev.Status == next.Status {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch next.Status {
	case generation.StatusInProgress:
		m.submissions++
	case generation.StatusSucceeded:
		m.succeeded++
	case generation.StatusFailed:
		m.failed++
	}
}

func (m *Metrics) view() MetricsView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsView{
		Uptime:           time.Since(m.startTime).Round(time.Second).String(),
		StartTime:        m.startTime,
		TotalSessions:    m.totalSessions,
		ActiveSessions:   m.activeSessions,
		TotalConnections: m.totalConnections,
		Submissions:      m.submissions,
		Succeeded:        m.succeeded,
		Failed:           m.failed,
		Relayed:          m.relayed,
	}
}
