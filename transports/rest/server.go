// Package rest serves the conversation API over plain HTTP.
package rest

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"echo/core"
	"echo/transports"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

const defaultMaxUploadBytes = 25 << 20

type Options struct {
	Users transports.UserResolver
	// MaxUploadBytes bounds the multipart body. The STT handler applies
	// its own limit to the audio part itself.
	MaxUploadBytes int64
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Ready reports readiness for /healthz. Nil means always ready.
	Ready  func() error
	Logger *core.Logger
}

type Server struct {
	conversations transports.Conversations
	opts          Options
	logger        *core.Logger
	mux           *http.ServeMux
}

func NewServer(conversations transports.Conversations, opts Options) *Server {
	if opts.Users == nil {
		opts.Users = transports.HeaderUserResolver(transports.DefaultUserID)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.Logger == nil {
		opts.Logger = core.GetLogger()
	}
	s := &Server{
		conversations: conversations,
		opts:          opts,
		logger:        opts.Logger.With(map[string]any{"component": "rest"}),
		mux:           http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /conversations/start", s.handleStart)
	s.mux.HandleFunc("POST /conversations/message", s.handleMessage)
	s.mux.HandleFunc("POST /conversations/end", s.handleEnd)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		s.mux.Handle("GET /metrics", s.opts.Metrics)
	}
}

// Handle mounts an extra route, such as the WebSocket endpoint.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := s.logger.With(map[string]any{"request_id": uuid.NewString(), "user_id": s.opts.Users(r)})
	r = r.WithContext(core.ContextWithLogger(r.Context(), logger))

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	logger.With(map[string]any{
		"method":   r.Method,
		"path":     r.URL.Path,
		"status":   rec.status,
		"duration": time.Since(start),
	}).Debug("http request")
}

type startResponse struct {
	Message   string    `json:"message"`
	AudioData []byte    `json:"audioData"`
	Timestamp time.Time `json:"timestamp"`
}

type messageResponse struct {
	UserMessage string    `json:"userMessage"`
	AIResponse  string    `json:"aiResponse"`
	AudioData   []byte    `json:"audioData"`
	Timestamp   time.Time `json:"timestamp"`
}

type endResponse struct {
	EndedAt time.Time `json:"endedAt"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	res, err := s.conversations.Start(r.Context(), s.opts.Users(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, startResponse{Message: res.Message, AudioData: res.Audio, Timestamp: res.Timestamp})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	in, err := s.readAudio(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.conversations.Message(r.Context(), s.opts.Users(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{
		UserMessage: res.UserMessage,
		AIResponse:  res.AIResponse,
		AudioData:   res.Audio,
		Timestamp:   res.Timestamp,
	})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	res, err := s.conversations.End(r.Context(), s.opts.Users(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, endResponse{EndedAt: res.EndedAt})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable", Message: err.Error()})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	if kind == core.KindInternal || kind == core.KindConfigurationMissing {
		core.LoggerFromContext(r.Context()).With(map[string]any{"error": err}).Error("request failed")
	}
	s.writeJSON(w, transports.HTTPStatus(kind), errorResponse{Error: string(kind), Message: transports.PublicMessage(err)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		s.logger.With(map[string]any{"error": err}).Error("failed to encode response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack passes through so the WebSocket route can upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("rest: response writer does not support hijacking")
	}
	return h.Hijack()
}
