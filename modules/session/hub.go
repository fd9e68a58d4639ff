package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"video-studio-server/modules/common/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// 메시지 타입
const (
	MessageState         = "state"
	MessageRequestState  = "request_state"
	MessagePing          = "ping"
	MessagePong          = "pong"
	MessageSessionClosed = "session_closed"
)

// Message - WebSocket 으로 주고받는 메시지
type Message struct {
	Type      string               `json:"type"`
	SessionID string               `json:"sessionId,omitempty"`
	State     *model.StateSnapshot `json:"state,omitempty"`
}

func stateMessage(snapshot model.StateSnapshot) Message {
	return Message{Type: MessageState, SessionID: snapshot.SessionID, State: &snapshot}
}

// 연결된 클라이언트
type Client struct {
	id        string
	sessionID string
	conn      *websocket.Conn
	log       zerolog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(id, sessionID string, conn *websocket.Conn, log zerolog.Logger) *Client {
	return &Client{
		id:        id,
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		log:       log.With().Str("client", id).Logger(),
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// enqueue - 닫혔거나 버퍼가 가득 찬 느린 클라이언트는 false
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) sendMessage(msg Message) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Msg("Error marshaling message")
		return false
	}
	return c.enqueue(payload)
}

// 클라이언트로부터 메시지 읽기
func (c *Client) readPump(onMessage func(*Client, Message), onLeave func(*Client)) {
	defer func() {
		onLeave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
		onMessage(c, msg)
	}
}

// 클라이언트로 메시지 쓰기
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Warn().Err(err).Msg("WebSocket write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub - 한 세션을 보고 있는 클라이언트 집합
type Hub struct {
	sessionID string
	log       zerolog.Logger

	mu      sync.Mutex
	clients map[string]*Client
	// 원격 세션용: 마지막으로 릴레이된 스냅샷
	last *model.StateSnapshot
}

func newHub(sessionID string, log zerolog.Logger) *Hub {
	return &Hub{
		sessionID: sessionID,
		log:       log,
		clients:   make(map[string]*Client),
	}
}

func (h *Hub) add(c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	return len(h.clients)
}

// remove - 남은 클라이언트 수 반환
func (h *Hub) remove(clientID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		c.close()
		delete(h.clients, clientID)
	}
	return len(h.clients)
}

func (h *Hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast - 모든 클라이언트에게 전송, 못 받는 클라이언트는 끊음
func (h *Hub) broadcast(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("Error marshaling message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if msg.State != nil {
		snap := *msg.State
		h.last = &snap
	}
	for id, c := range h.clients {
		if !c.enqueue(payload) {
			h.log.Warn().Str("client", id).Msg("🐌 Dropping slow client")
			c.close()
			delete(h.clients, id)
		}
	}
}

func (h *Hub) lastSnapshot() (model.StateSnapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return model.StateSnapshot{}, false
	}
	return *h.last, true
}

// closeAll - 세션 종료 시 모든 클라이언트 연결 해제
func (h *Hub) closeAll(msg Message) {
	payload, _ := json.Marshal(msg)

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.enqueue(payload)
		c.close()
		delete(h.clients, id)
	}
}
