// Package session implements the per-connection session manager: the
// authentication-gated message dispatcher, remote shell lifecycle, heartbeat
// liveness checking, and teardown.
//
// Each accepted WebSocket connection gets one Session. All session state is
// owned by a single event-loop goroutine; client frames, remote shell output
// and dial results are funneled into one event channel so they are processed
// strictly in arrival order. The only state shared across connections is the
// admission gate counter.
package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/euem/sshbridge/internal/auth"
	"github.com/euem/sshbridge/internal/gate"
	"github.com/euem/sshbridge/internal/protocol"
	"github.com/euem/sshbridge/internal/shell"
	"github.com/euem/sshbridge/internal/token"
	"github.com/google/uuid"
)

// Options carries the collaborators and limits for one session.
type Options struct {
	Verifier *auth.Verifier
	Tokens   *token.Service
	Dialer   shell.Dialer
	Gate     *gate.Gate

	ConnectTimeout    time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MessageSizeLimit  int64

	// StartedAt is the process start time, reported in status snapshots.
	StartedAt time.Time
}

// Session is the per-connection state machine. Fields are owned exclusively
// by the event loop goroutine; other goroutines interact only through the
// events channel.
type Session struct {
	id   string
	conn *websocket.Conn
	opts Options

	authenticated bool
	principal     *auth.Principal
	token         string

	// handle is the attached remote shell, at most one at a time. shellSeq
	// increments whenever the shell slot is invalidated so that late dial
	// results and output events from a previous shell are discarded.
	handle     shell.Handle
	shellSeq   int
	connecting bool
	deadline   *time.Timer

	events    chan event
	done      chan struct{}
	closeOnce sync.Once
}

type event interface{}

type clientFrame struct{ data []byte }

type clientGone struct{ err error }

type dialResult struct {
	seq    int
	handle shell.Handle
	err    error
}

type shellOutput struct {
	seq  int
	data []byte
}

type shellClosed struct{ seq int }

// New creates a Session for an accepted connection.
func New(conn *websocket.Conn, opts Options) *Session {
	return &Session{
		id:     uuid.New().String(),
		conn:   conn,
		opts:   opts,
		events: make(chan event, 64),
		done:   make(chan struct{}),
	}
}

// ID returns the connection identifier.
func (s *Session) ID() string {
	return s.id
}

// Preauthenticate validates a token presented at connection time (from the
// login cookie) and, on success, starts the session authenticated and emits
// auth_success. Must be called before Run. Invalid tokens are ignored; the
// client simply starts unauthenticated.
func (s *Session) Preauthenticate(ctx context.Context, tokenString string) {
	principal, err := s.opts.Tokens.Validate(tokenString)
	if err != nil {
		return
	}
	s.authenticated = true
	s.principal = principal
	s.token = tokenString
	s.send(ctx, protocol.NewAuthSuccess(tokenString, protocol.UserSummary{
		Identifier:  principal.Identifier,
		Role:        principal.Role,
		Permissions: principal.Permissions,
	}))
	log.Printf("[session %s] user %s authenticated via cookie", s.id, principal.Identifier)
}

// Run drives the session until the connection closes. It always performs
// full teardown before returning.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.teardown()

	s.conn.SetReadLimit(s.opts.MessageSizeLimit)

	go s.readLoop(ctx)
	go s.heartbeatLoop(ctx)

	s.loop(ctx)
}

// readLoop reads client frames and posts them to the event channel. An
// oversized frame makes Read fail and the connection is closed with a
// message-too-big status before the frame is ever parsed.
func (s *Session) readLoop(ctx context.Context) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.post(clientGone{err: err})
			return
		}
		if !s.post(clientFrame{data: data}) {
			return
		}
	}
}

// post delivers an event to the loop, or reports false if the session has
// already been torn down.
func (s *Session) post(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) loop(ctx context.Context) {
	for {
		// A nil deadline channel blocks forever, so the select arm is
		// inert unless a connect is pending.
		var deadlineC <-chan time.Time
		if s.deadline != nil {
			deadlineC = s.deadline.C
		}

		select {
		case <-ctx.Done():
			return

		case <-deadlineC:
			s.deadline = nil
			s.connecting = false
			s.shellSeq++
			s.send(ctx, protocol.NewError(protocol.ErrConnectionTimeout))

		case ev := <-s.events:
			switch ev := ev.(type) {
			case clientGone:
				return

			case clientFrame:
				s.dispatch(ctx, ev.data)

			case dialResult:
				s.handleDialResult(ctx, ev)

			case shellOutput:
				if ev.seq == s.shellSeq && s.handle != nil {
					s.send(ctx, protocol.NewData(string(ev.data)))
				}

			case shellClosed:
				if ev.seq == s.shellSeq && s.handle != nil {
					// Remote side ended the stream.
					s.releaseShell()
					s.send(ctx, protocol.NewClosed())
					log.Printf("[session %s] remote shell closed by peer", s.id)
				}
			}
		}
	}
}

// send marshals and writes one outbound frame. Write failures are logged;
// the read loop observes the dead connection and ends the session.
func (s *Session) send(ctx context.Context, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[session %s] marshal frame: %v", s.id, err)
		return
	}
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		log.Printf("[session %s] write frame: %v", s.id, err)
	}
}

func (s *Session) sendError(ctx context.Context, msg string) {
	s.send(ctx, protocol.NewError(msg))
}

// releaseShell fully releases the attached shell (if any), cancels the
// connect deadline and invalidates pending dial results. Safe to call on
// every teardown path; releasing twice is a no-op.
func (s *Session) releaseShell() {
	s.shellSeq++
	s.connecting = false
	if s.deadline != nil {
		s.deadline.Stop()
		s.deadline = nil
	}
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
}

// teardown runs exactly once, releasing the shell handle and unblocking any
// producer goroutines. Late events after teardown are dropped by post.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.releaseShell()
		log.Printf("[session %s] closed", s.id)
	})
}

// heartbeatLoop sends a protocol-level ping every HeartbeatInterval and
// waits up to HeartbeatTimeout for the pong. Ping blocks until the pong
// arrives, so at most one pending deadline exists at a time. A missed pong
// force-closes the connection.
func (s *Session) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.opts.HeartbeatTimeout)
			err := s.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[session %s] heartbeat timeout, closing connection", s.id)
				s.conn.Close(websocket.StatusGoingAway, "heartbeat timeout")
				return
			}
		}
	}
}
