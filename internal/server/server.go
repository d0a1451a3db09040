// Package server hosts the chat widget: a websocket per client, each with its
// own conversation, plus a read-only FAQ endpoint.
package server

import (
	"context"
	"encoding/json"
	log "log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pcodcare/internal/conversation"
	"pcodcare/internal/faq"
	"pcodcare/pkg/protocol"
)

// ClipTranscriber turns an uploaded audio clip into text.
type ClipTranscriber interface {
	TranscribeClip(ctx context.Context, clip []byte) (string, error)
}

type Config struct {
	Completer conversation.Completer
	FAQ       *faq.Index
	Timeout   time.Duration // per completion

	// Clips is nil when the daemon cannot transcribe audio.
	Clips ClipTranscriber

	// AllowedOrigins restricts websocket origins; empty allows any.
	AllowedOrigins []string

	Logger *log.Logger
}

type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	router   chi.Router

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

func New(cfg Config) *Server {
	if cfg.FAQ == nil {
		cfg.FAQ = faq.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	s := &Server{
		cfg:      cfg,
		sessions: make(map[string]*session),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Get("/api/faq", s.handleFAQ)
	r.Get("/ws", s.handleWS)

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown disconnects every widget and waits for their conversations to
// wind down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, sess := range s.sessions {
		sess.conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

func (s *Server) handleFAQ(w http.ResponseWriter, r *http.Request) {
	entries := s.cfg.FAQ.Search(r.URL.Query().Get("q"))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		s.cfg.Logger.Warn("Failed to write faq", "err", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Warn("WebSocket upgrade failed", "err", err)
		return
	}

	sess := s.newSession(protocol.NewConn(conn))

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess.id)
		s.mu.Unlock()
		s.wg.Done()
	}()

	sess.logger.Info("Widget connected", "remote", r.RemoteAddr)
	sess.run()
	sess.logger.Info("Widget disconnected")
}

func (s *Server) newSession(conn *protocol.Conn) *session {
	id := uuid.NewString()
	logger := s.cfg.Logger.With("session", id)

	sess := &session{
		id:     id,
		conn:   conn,
		faq:    s.cfg.FAQ,
		clips:  s.cfg.Clips,
		logger: logger,
	}
	sess.mgr = conversation.New(s.cfg.Completer, conversation.Options{
		Speaker: remoteSpeaker{conn: conn},
		Timeout: s.cfg.Timeout,
		Logger:  logger,
	})
	sess.bridge = sess.newBridge()

	return sess
}
