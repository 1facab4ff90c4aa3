// Package server wires the HTTP and WebSocket surface: the login endpoints,
// the health check, and the WebSocket entry point that admits connections
// and hands them to a session.
package server

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/euem/sshbridge/internal/auth"
	"github.com/euem/sshbridge/internal/gate"
	"github.com/euem/sshbridge/internal/session"
	"github.com/euem/sshbridge/internal/shell"
	"github.com/euem/sshbridge/internal/token"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// AuthCookie carries the signed token between the HTTP login and the
// WebSocket connection.
const AuthCookie = "auth_token"

// Options carries the server's collaborators and limits.
type Options struct {
	Verifier *auth.Verifier
	Tokens   *token.Service
	Dialer   shell.Dialer

	BasePath          string
	MaxConnections    int
	ConnectTimeout    time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MessageSizeLimit  int64
}

type Server struct {
	opts      Options
	gate      *gate.Gate
	startedAt time.Time
}

func New(opts Options) *Server {
	return &Server{
		opts:      opts,
		gate:      gate.New(opts.MaxConnections),
		startedAt: time.Now(),
	}
}

// Gate exposes the admission gate, for status reporting and tests.
func (s *Server) Gate() *gate.Gate {
	return s.gate
}

// Router builds the HTTP handler honoring the configured base path.
func (s *Server) Router() http.Handler {
	sub := chi.NewRouter()
	sub.Get("/health", s.handleHealth)
	sub.Post("/auth/login", s.handleLogin)
	sub.Post("/auth/logout", s.handleLogout)
	sub.Get("/auth/status", s.handleAuthStatus)
	sub.Get("/", s.handleRoot)

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	if s.opts.BasePath == "" {
		r.Mount("/", sub)
	} else {
		r.Mount(s.opts.BasePath, sub)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRoot serves the login page, or upgrades to a WebSocket session when
// the client requests it.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		s.handleWebSocket(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(loginPage))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.gate.Admit() {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		log.Printf("connection limit reached, rejecting new connection")
		conn.Close(websocket.StatusTryAgainLater, "server overloaded")
		return
	}
	defer s.gate.Release()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("failed to accept websocket: %v", err)
		return
	}
	defer conn.CloseNow()

	log.Printf("client connected (%d/%d)", s.gate.Active(), s.gate.Ceiling())

	sess := session.New(conn, session.Options{
		Verifier:          s.opts.Verifier,
		Tokens:            s.opts.Tokens,
		Dialer:            s.opts.Dialer,
		Gate:              s.gate,
		ConnectTimeout:    s.opts.ConnectTimeout,
		HeartbeatInterval: s.opts.HeartbeatInterval,
		HeartbeatTimeout:  s.opts.HeartbeatTimeout,
		MessageSizeLimit:  s.opts.MessageSizeLimit,
		StartedAt:         s.startedAt,
	})

	if cookie, err := r.Cookie(AuthCookie); err == nil && cookie.Value != "" {
		sess.Preauthenticate(r.Context(), cookie.Value)
	}

	sess.Run(r.Context())
	conn.Close(websocket.StatusNormalClosure, "")

	log.Printf("client disconnected (%d/%d)", s.gate.Active()-1, s.gate.Ceiling())
}
