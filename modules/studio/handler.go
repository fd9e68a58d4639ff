package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"video-studio-server/modules/generation"
	"video-studio-server/modules/media"
	"video-studio-server/modules/session"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 스튜디오 UI 는 별도 origin 에서 서빙됨
		return true
	},
}

type Options struct {
	MaxUploadBytes int64
	// nil 이면 Redis 비활성
	RedisPing func(ctx context.Context) error
}

// Handler - 스튜디오 HTTP 핸들러
type Handler struct {
	manager *session.Manager
	store   *media.Store
	opts    Options
	log     zerolog.Logger
}

func NewHandler(manager *session.Manager, store *media.Store, opts Options, log zerolog.Logger) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	return &Handler{
		manager: manager,
		store:   store,
		opts:    opts,
		log:     log,
	}
}

// Router - CORS / 접근 로그 미들웨어가 적용된 라우터
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(enableCORS)
	r.Use(accessLog(h.log))
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.HandleHealth).Methods("GET")
	r.HandleFunc("/health", h.HandleHealth).Methods("GET")
	r.HandleFunc("/metrics", h.HandleMetrics).Methods("GET")
	r.HandleFunc("/ws", h.HandleWebSocket)

	api := r.PathPrefix("/api/sessions").Subrouter()
	api.HandleFunc("", h.HandleCreateSession).Methods("POST", "OPTIONS")
	api.HandleFunc("/{id}", h.HandleGetSession).Methods("GET", "OPTIONS")
	api.HandleFunc("/{id}", h.HandleDeleteSession).Methods("DELETE")
	api.HandleFunc("/{id}/image", h.HandleAttach(media.KindImage)).Methods("POST", "OPTIONS")
	api.HandleFunc("/{id}/image", h.HandleDetach(media.KindImage)).Methods("DELETE")
	api.HandleFunc("/{id}/audio", h.HandleAttach(media.KindAudio)).Methods("POST", "OPTIONS")
	api.HandleFunc("/{id}/audio", h.HandleDetach(media.KindAudio)).Methods("DELETE")
	api.HandleFunc("/{id}/generate", h.HandleGenerate).Methods("POST", "OPTIONS")

	r.HandleFunc("/media/{handle}", h.HandleMedia).Methods("GET", "HEAD")

	h.log.Info().Msg("✅ [Studio] Routes registered: /api/sessions, /media/{handle}, /ws")
}

// HandleHealth - GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Service: "video-studio", Redis: "disabled"}
	if h.opts.RedisPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.opts.RedisPing(ctx); err != nil {
			resp.Redis = "unreachable"
		} else {
			resp.Redis = "ok"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleMetrics - GET /metrics
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Metrics())
}

// HandleCreateSession - POST /api/sessions
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Create()
	view := s.View()
	writeJSON(w, http.StatusCreated, SessionResponse{
		Success:   true,
		SessionID: s.ID(),
		Session:   &view,
	})
}

// HandleGetSession - GET /api/sessions/{id}
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Touch()
	view := s.View()
	writeJSON(w, http.StatusOK, SessionResponse{Success: true, SessionID: s.ID(), Session: &view})
}

// HandleDeleteSession - DELETE /api/sessions/{id}
func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.manager.Close(id) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Success: true, SessionID: id})
}

// HandleAttach - POST /api/sessions/{id}/image|audio (multipart field "file")
func (h *Handler) HandleAttach(kind media.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.session(w, r)
		if !ok {
			return
		}

		name, mimeType, data, status, err := h.readUpload(w, r)
		if err != nil {
			h.log.Warn().Err(err).Str("kind", string(kind)).Msg("❌ [Studio] Invalid upload")
			writeError(w, status, err.Error())
			return
		}

		att := s.Attachments()
		var handle media.Handle
		if kind == media.KindImage {
			handle, err = att.AttachImage(name, mimeType, data)
		} else {
			handle, err = att.AttachAudio(name, mimeType, data)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.Touch()

		h.log.Info().Str("session", s.ID()).Str("kind", string(kind)).Int("size", handle.Size).
			Msg("📎 [Studio] Attachment stored")

		view := s.View()
		attachment := view.Image
		if kind == media.KindAudio {
			attachment = view.Audio
		}
		writeJSON(w, http.StatusOK, AttachmentResponse{Success: true, Attachment: attachment})
	}
}

// HandleDetach - DELETE /api/sessions/{id}/image|audio
func (h *Handler) HandleDetach(kind media.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.session(w, r)
		if !ok {
			return
		}
		var removed bool
		if kind == media.KindImage {
			removed = s.Attachments().RemoveImage()
		} else {
			removed = s.Attachments().RemoveAudio()
		}
		s.Touch()
		writeJSON(w, http.StatusOK, AttachmentResponse{Success: true, Removed: removed})
	}
}

// readUpload - multipart "file" 읽기, 반환 status 는 에러 시 응답 코드
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (string, string, []byte, int, error) {
	// multipart 오버헤드 여유분
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", "", nil, http.StatusRequestEntityTooLarge, errors.New("file is too large")
		}
		return "", "", nil, http.StatusBadRequest, errors.New("invalid multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", nil, http.StatusBadRequest, errors.New("file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.opts.MaxUploadBytes+1))
	if err != nil {
		return "", "", nil, http.StatusBadRequest, errors.New("failed to read file")
	}
	if int64(len(data)) > h.opts.MaxUploadBytes {
		return "", "", nil, http.StatusRequestEntityTooLarge, errors.New("file is too large")
	}

	mimeType := header.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mediaType
	}
	if (mimeType == "" || mimeType == "application/octet-stream") && len(data) > 0 {
		mimeType = sniffMimeType(data)
	}
	return header.Filename, mimeType, data, http.StatusOK, nil
}

// sniffMimeType - 브라우저가 타입을 안 보낸 경우 매직 바이트로 판별
func sniffMimeType(data []byte) string {
	detected := mimetype.Detect(data).String()
	if mediaType, _, err := mime.ParseMediaType(detected); err == nil {
		return mediaType
	}
	return detected
}

// HandleGenerate - POST /api/sessions/{id}/generate
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, err := s.Generate(req.form())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, generation.ErrValidation) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, GenerateResponse{Success: false, Token: state.Token, State: state, Error: state.Error})
		return
	}

	h.log.Info().Str("session", s.ID()).Uint64("token", state.Token).Msg("📥 [Studio] Generation started")
	writeJSON(w, http.StatusAccepted, GenerateResponse{Success: true, Token: state.Token, State: state})
}

// HandleMedia - GET /media/{handle}
// 스트리밍 중에는 mount 로 고정되어 해제되지 않음
func (h *Handler) HandleMedia(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["handle"]

	blob, ok := h.store.Mount(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Media not found")
		return
	}
	defer h.store.Unmount(id)

	if blob.MimeType != "" {
		w.Header().Set("Content-Type", blob.MimeType)
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": blob.Name}))
	}

	http.ServeContent(w, r, blob.Name, time.Time{}, bytes.NewReader(blob.Data))
}

// HandleWebSocket - GET /ws?session={id}
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if !h.manager.CanWatch(sessionID) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	if err := h.manager.Connect(sessionID, conn); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		conn.Close()
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := h.manager.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return s, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: msg})
}
